package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactpool/milestone-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAchievement_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM achievements WHERE id = \$1`).
		WithArgs("pool:nope:1").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetAchievement(context.Background(), "pool:nope:1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAchievementIfAbsent_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := testAchievement("pool:clean-water-fund:5")

	mock.ExpectExec(`INSERT INTO achievements .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(a.ID, string(a.Category), a.Subject, a.Recipient, string(a.State),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, existing, err := s.InsertAchievementIfAbsent(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, existing)
	assert.Equal(t, a.ID, existing.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAchievementIfAbsent_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := testAchievement("pool:clean-water-fund:5")
	stored := a
	stored.State = model.StateMinted
	record, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO achievements .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(a.ID, string(a.Category), a.Subject, a.Recipient, string(a.State),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT record FROM achievements WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(record))

	created, existing, err := s.InsertAchievementIfAbsent(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, existing)
	assert.Equal(t, model.StateMinted, existing.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAchievement_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := testAchievement("pool:missing:1")

	mock.ExpectExec(`UPDATE achievements SET state = \$1, record = \$2 WHERE id = \$3`).
		WithArgs(string(a.State), pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAchievement(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMilestoneState_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT subject, category, high_water_mark, last_updated FROM milestone_states`).
		WithArgs("clean-water-fund", "pool").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetMilestoneState(context.Background(), "clean-water-fund", model.CategoryPool)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutMilestoneState_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO milestone_states .* ON CONFLICT \(subject, category\) DO UPDATE`).
		WithArgs("clean-water-fund", "pool", 50.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutMilestoneState(context.Background(), model.MilestoneState{
		Subject:       "clean-water-fund",
		Category:      model.CategoryPool,
		HighWaterMark: 50,
		LastUpdated:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAchievements_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := testAchievement("pool:a:1")
	record, err := json.Marshal(a)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record FROM achievements WHERE true AND state = \$1 ORDER BY created_at, id`).
		WithArgs("claimable").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(record))

	got, err := s.ListAchievements(context.Background(), AchievementFilter{State: model.StateClaimable})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pool:a:1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutPosition_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO positions .* ON CONFLICT \(pool_id, contributor\) DO UPDATE`).
		WithArgs("pool-1", "GALICE", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutPosition(context.Background(), model.Position{
		PoolID:      "pool-1",
		Contributor: "GALICE",
		Deposited:   60,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
