package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/store"
)

func TestRevertCreateBlanksCreatedRow(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpCreate, models.TableContributions, map[string]any{
		"id": "C004", "funder_id": "F003", "amount": 12000,
	})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	inverse, err := env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpRevert, inverse.Kind)
	assert.False(t, inverse.CanRevert)

	rows := env.client.Rows(models.TableContributions)
	require.Len(t, rows, 4)
	assert.True(t, rows[3].Blank())
}

func TestRevertUpdateRestoresBefore(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpUpdate, models.TableContributions, map[string]any{
		"id": "C002", "status": "cancelled", "amount": 0,
	})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)

	rows := env.client.Rows(models.TableContributions)
	assert.Equal(t, "pledged", rows[1][6])
	assert.Equal(t, "40000", rows[1][4])
}

func TestRevertDeleteRestoresIdenticalRow(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	original := env.client.Rows(models.TableContributions)[1]

	op := classified(models.OpDelete, models.TableContributions, map[string]any{"id": "C002"})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)
	assert.True(t, env.client.Rows(models.TableContributions)[1].Blank())

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, original, env.client.Rows(models.TableContributions)[1],
		"the deleted record reappears with every field intact")
}

func TestRevertAcceptsShortID(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpDelete, models.TableContributions, map[string]any{"id": "C001"})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	_, err = env.reverter.Revert(ctx, rec.ShortID())
	require.NoError(t, err)
	assert.Equal(t, "C001", env.client.Rows(models.TableContributions)[0][0])
}

func TestRevertIsSingleShot(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpUpdate, models.TableContributions, map[string]any{
		"id": "C001", "status": "cancelled",
	})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)

	var ineligible *RevertIneligibleError
	_, err = env.reverter.Revert(ctx, rec.ID)
	require.ErrorAs(t, err, &ineligible)
}

func TestRevertUnknownAndIneligible(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	var ineligible *RevertIneligibleError

	_, err := env.reverter.Revert(ctx, "00000000-none")
	require.ErrorAs(t, err, &ineligible)

	// erase_all records are never revertible.
	op := classified(models.OpEraseAll, models.TableContributions, nil)
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.ErrorAs(t, err, &ineligible)
}

func TestRevertTakesSafetySnapshot(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpUpdate, models.TableContributions, map[string]any{
		"id": "C003", "status": "cancelled",
	})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)

	snaps, err := env.st.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Contains(t, snaps[0].Description, rec.ShortID())
}

func TestRevertCreateDetectsForeignRow(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpCreate, models.TableContributions, map[string]any{
		"id": "C004", "funder_id": "F003",
	})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	// Someone rewrites the row out from under the change history.
	require.NoError(t, env.client.UpdateRow(ctx, models.TableContributions, 3,
		models.Row{"C999", "F009", "", "", "", "", "", ""}))

	_, err = env.reverter.Revert(ctx, rec.ID)
	require.Error(t, err)
	assert.Equal(t, "C999", env.client.Rows(models.TableContributions)[3][0],
		"the foreign row is left alone")
}

func TestRevertEntersLedgerAsNewChange(t *testing.T) {
	env := newTestEnv(t)
	seedContributions(env)
	ctx := context.Background()

	op := classified(models.OpDelete, models.TableContributions, map[string]any{"id": "C003"})
	rec, err := env.executor.Execute(ctx, op)
	require.NoError(t, err)

	inverse, err := env.reverter.Revert(ctx, rec.ID)
	require.NoError(t, err)

	recent, err := env.st.RecentChanges(5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, inverse.ID, recent[0].ID, "the revert is the newest entry")
	assert.Equal(t, rec.ID, recent[1].ID)
	assert.False(t, recent[1].CanRevert, "the original is marked consumed")
}

func TestRevertSurvivesLedgerEviction(t *testing.T) {
	opts := store.DefaultOptions()
	opts.MaxChanges = 2
	env := newTestEnvWith(t, opts)
	seedContributions(env)
	ctx := context.Background()

	first, err := env.executor.Execute(ctx,
		classified(models.OpDelete, models.TableContributions, map[string]any{"id": "C001"}))
	require.NoError(t, err)
	_, err = env.executor.Execute(ctx,
		classified(models.OpDelete, models.TableContributions, map[string]any{"id": "C002"}))
	require.NoError(t, err)

	// The ledger is full, so recording the reversal evicts the original.
	inverse, err := env.reverter.Revert(ctx, first.ID)
	require.NoError(t, err)

	assert.Equal(t, "C001", env.client.Rows(models.TableContributions)[0][0])

	recent, err := env.st.RecentChanges(5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, inverse.ID, recent[0].ID)
}
