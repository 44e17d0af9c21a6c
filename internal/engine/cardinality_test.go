package engine

import (
	"testing"

	"github.com/inbox-agent/core/internal/database/models"
	"github.com/inbox-agent/core/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedGroup creates a target group with the given options and returns them in
// insertion order
func seedGroup(t *testing.T, db *gorm.DB, accountID uint, cardinality models.Cardinality, names ...string) []models.AllowedActionOption {
	group := &models.TargetGroup{AccountID: accountID, Name: "priority", Cardinality: cardinality}
	require.NoError(t, db.Create(group).Error)

	options := make([]models.AllowedActionOption, 0, len(names))
	for _, name := range names {
		option := models.AllowedActionOption{
			AccountID:     accountID,
			ActionType:    models.ActionTypeLabel,
			Name:          name,
			ExternalID:    "id-" + name,
			TargetGroupID: group.ID,
		}
		require.NoError(t, db.Create(&option).Error)
		options = append(options, option)
	}
	return options
}

func TestCardinality_SingleGroupRetractsSiblings(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	seedGroup(t, db, account.ID, models.CardinalitySingle, "urgent", "normal", "low")

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	err := enforcer.Enforce(account, "id-urgent", "urgent", "<thread-1>")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"id-normal", "id-low"}, fake.removedLabels["<thread-1>"])
}

func TestCardinality_MultiGroupLeavesSiblingsAlone(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())
	seedGroup(t, db, account.ID, models.CardinalityMulti, "work", "travel")

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	require.NoError(t, enforcer.Enforce(account, "id-work", "work", "<thread-1>"))
	assert.Empty(t, fake.removedLabels)
}

func TestCardinality_UngroupedLabelIsIgnored(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	require.NoError(t, enforcer.Enforce(account, "id-unknown", "unknown", "<thread-1>"))
	assert.Empty(t, fake.removedLabels)
}

func TestCardinality_ExternalIDMatchOutranksNameMatch(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())

	// A MULTI group row whose name collides with the applied label, and a
	// SINGLE group row matching by external id. The id match must win.
	multi := &models.TargetGroup{AccountID: account.ID, Name: "topics", Cardinality: models.CardinalityMulti}
	require.NoError(t, db.Create(multi).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "urgent", ExternalID: "id-other", TargetGroupID: multi.ID,
	}).Error)

	single := &models.TargetGroup{AccountID: account.ID, Name: "priority", Cardinality: models.CardinalitySingle}
	require.NoError(t, db.Create(single).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "priority-urgent", ExternalID: "id-urgent", TargetGroupID: single.ID,
	}).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "priority-low", ExternalID: "id-low", TargetGroupID: single.ID,
	}).Error)

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	require.NoError(t, enforcer.Enforce(account, "id-urgent", "urgent", "<thread-1>"))
	assert.Equal(t, []string{"id-low"}, fake.removedLabels["<thread-1>"])
}

func TestCardinality_AccountScopedRowOutranksAgnosticRow(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())

	// Account-agnostic MULTI row and an account-scoped SINGLE row, same name
	agnostic := &models.TargetGroup{AccountID: 0, Name: "global", Cardinality: models.CardinalityMulti}
	require.NoError(t, db.Create(agnostic).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: 0, ActionType: models.ActionTypeLabel,
		Name: "urgent", TargetGroupID: agnostic.ID,
	}).Error)

	scoped := &models.TargetGroup{AccountID: account.ID, Name: "priority", Cardinality: models.CardinalitySingle}
	require.NoError(t, db.Create(scoped).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "urgent", ExternalID: "id-urgent", TargetGroupID: scoped.ID,
	}).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "low", ExternalID: "id-low", TargetGroupID: scoped.ID,
	}).Error)

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	require.NoError(t, enforcer.Enforce(account, "", "urgent", "<thread-1>"))
	assert.Equal(t, []string{"id-low"}, fake.removedLabels["<thread-1>"])
}

func TestCardinality_UnresolvableSiblingIsSkipped(t *testing.T) {
	db, cleanup := setupEngineDB(t)
	defer cleanup()

	account := createTestAccount(t, db, defaultTestSettings())

	group := &models.TargetGroup{AccountID: account.ID, Name: "priority", Cardinality: models.CardinalitySingle}
	require.NoError(t, db.Create(group).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "urgent", ExternalID: "id-urgent", TargetGroupID: group.ID,
	}).Error)
	// Sibling with no external id that the provider does not know either
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "ghost", TargetGroupID: group.ID,
	}).Error)
	require.NoError(t, db.Create(&models.AllowedActionOption{
		AccountID: account.ID, ActionType: models.ActionTypeLabel,
		Name: "low", ExternalID: "id-low", TargetGroupID: group.ID,
	}).Error)

	fake := newFakeProvider()
	enforcer := NewCardinalityEnforcer(db, fake, services.NewLogService(db))

	require.NoError(t, enforcer.Enforce(account, "id-urgent", "urgent", "<thread-1>"))
	assert.Equal(t, []string{"id-low"}, fake.removedLabels["<thread-1>"], "unresolvable sibling is skipped, not fatal")
}
