package engine

import (
	"testing"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildMatches constructs one match per rule spec; each spec is the list of
// action types for that rule
func buildMatches(specs [][]models.ActionType, contents map[int]string) []RuleMatch {
	matches := make([]RuleMatch, 0, len(specs))
	draftIdx := 0
	for i, types := range specs {
		rule := models.Rule{ID: uint(i + 1), Name: "rule"}
		for _, at := range types {
			action := models.Action{Type: at}
			if at.ProducesDraft() {
				if content, ok := contents[draftIdx]; ok {
					action.Content = content
				}
				draftIdx++
			}
			rule.Actions = append(rule.Actions, action)
		}
		matches = append(matches, RuleMatch{Rule: rule})
	}
	return matches
}

func countDrafts(matches []RuleMatch) int {
	n := 0
	for _, m := range matches {
		for _, a := range m.Rule.Actions {
			if a.Type.ProducesDraft() {
				n++
			}
		}
	}
	return n
}

// genActionTypes generates per-rule action type lists with a mix of draft and
// non-draft actions
func genActionTypes() gopter.Gen {
	actionType := gen.OneConstOf(
		models.ActionTypeArchive,
		models.ActionTypeLabel,
		models.ActionTypeDraft,
		models.ActionTypeReply,
		models.ActionTypeMarkRead,
		models.ActionTypeMoveFolder,
	)
	return gen.SliceOf(gen.SliceOf(actionType))
}

// TestProperty_DraftLimiter_AtMostOneDraftSurvives tests that however many
// rules match with however many draft actions, at most one draft-producing
// action remains after limiting.
func TestProperty_DraftLimiter_AtMostOneDraftSurvives(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("at_most_one_draft_action_remains", prop.ForAll(
		func(specs [][]models.ActionType) bool {
			matches := buildMatches(specs, nil)
			limited := LimitDraftActions(matches)
			return countDrafts(limited) <= 1
		},
		genActionTypes(),
	))

	properties.Property("non_draft_actions_are_preserved", prop.ForAll(
		func(specs [][]models.ActionType) bool {
			matches := buildMatches(specs, nil)
			limited := LimitDraftActions(matches)

			for i := range matches {
				wantOther := 0
				for _, a := range matches[i].Rule.Actions {
					if !a.Type.ProducesDraft() {
						wantOther++
					}
				}
				gotOther := 0
				for _, a := range limited[i].Rule.Actions {
					if !a.Type.ProducesDraft() {
						gotOther++
					}
				}
				if wantOther != gotOther {
					return false
				}
			}
			return true
		},
		genActionTypes(),
	))

	properties.Property("input_matches_are_never_mutated", prop.ForAll(
		func(specs [][]models.ActionType) bool {
			matches := buildMatches(specs, nil)
			before := countDrafts(matches)
			_ = LimitDraftActions(matches)
			return countDrafts(matches) == before
		},
		genActionTypes(),
	))

	properties.TestingRun(t)
}

// TestProperty_DraftLimiter_StaticContentWins tests that an authored draft
// (non-empty content) is preferred over AI-generated ones.
func TestProperty_DraftLimiter_StaticContentWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("authored_draft_beats_generated_ones", prop.ForAll(
		func(authoredIdx int, total int) bool {
			if total < 2 {
				total = 2
			}
			authoredIdx = authoredIdx % total
			if authoredIdx < 0 {
				authoredIdx = -authoredIdx
			}

			specs := make([][]models.ActionType, total)
			for i := range specs {
				specs[i] = []models.ActionType{models.ActionTypeDraft}
			}
			matches := buildMatches(specs, map[int]string{authoredIdx: "authored body"})

			limited := LimitDraftActions(matches)
			if countDrafts(limited) != 1 {
				return false
			}
			for _, m := range limited {
				for _, a := range m.Rule.Actions {
					if a.Type.ProducesDraft() && a.Content != "authored body" {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 20),
		gen.IntRange(2, 8),
	))

	properties.TestingRun(t)
}
