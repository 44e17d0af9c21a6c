package engine

// actionRef points at one action inside a match set
type actionRef struct {
	matchIdx  int
	actionIdx int
}

// LimitDraftActions ensures at most one draft-producing action survives
// across all matched rules. When more than one exists, an action with
// non-empty static content wins over a fully AI-generated one; remaining
// ties go to the first encountered. Rules that lose an action are shallow
// copied; the input matches are never mutated.
func LimitDraftActions(matches []RuleMatch) []RuleMatch {
	var drafts []actionRef
	for mi := range matches {
		for ai, action := range matches[mi].Rule.Actions {
			if action.Type.ProducesDraft() {
				drafts = append(drafts, actionRef{matchIdx: mi, actionIdx: ai})
			}
		}
	}
	if len(drafts) <= 1 {
		return matches
	}

	keep := drafts[0]
	for _, ref := range drafts {
		if matches[ref.matchIdx].Rule.Actions[ref.actionIdx].Content != "" {
			keep = ref
			break
		}
	}

	out := make([]RuleMatch, len(matches))
	copy(out, matches)
	for mi := range out {
		original := out[mi].Rule.Actions
		kept := original[:0:0]
		for ai, action := range original {
			if action.Type.ProducesDraft() && !(mi == keep.matchIdx && ai == keep.actionIdx) {
				continue
			}
			kept = append(kept, action)
		}
		if len(kept) != len(original) {
			rule := out[mi].Rule
			rule.Actions = kept
			out[mi].Rule = rule
		}
	}
	return out
}
