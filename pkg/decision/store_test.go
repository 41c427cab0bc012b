package decision

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solaius/shiftgate/pkg/store/storetest"
)

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db := storetest.NewDB(t, storetest.Options{Extra: []any{&Record{}}})
	return NewStore(db), db
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Record{}).Count(&n).Error)
	return n
}

func TestResolve_RepeatUpdatesInPlace(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	target, err := LineShiftTargetID("2025-06-01", "Day", "L1")
	require.NoError(t, err)
	key := NaturalKey{DecisionType: "resolve_no_go", TargetType: TargetTypeLineShift, TargetID: target}

	first, err := s.Resolve(ctx, key, Payload{
		OrgID: "O1", SiteID: "S1", Reason: "operator on break", Actor: "alice",
		RootCause: json.RawMessage(`{"category":"staffing"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, first.Status)

	second, err := s.Resolve(ctx, key, Payload{
		OrgID: "O1", SiteID: "S1", Reason: "backfilled from line 2", Actor: "bob",
		Actions: json.RawMessage(`["reassign"]`),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), countRows(t, db))
	assert.Equal(t, first.ID, second.ID, "row identity is stable")
	assert.Equal(t, "backfilled from line 2", second.Reason)
	assert.Equal(t, StatusActive, second.Status)
	assert.Equal(t, "alice", second.CreatedBy)
	assert.Equal(t, "bob", second.UpdatedBy)
	assert.JSONEq(t, `{}`, string(second.RootCause), "root cause is replaced, not merged")
	assert.JSONEq(t, `["reassign"]`, string(second.Actions))
}

func TestResolve_LegacyAndCanonicalConverge(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	legacy, err := CanonicalKey("resolve_no_go", TargetTypeLegacySlot, "2025-06-01|Day|L1|3")
	require.NoError(t, err)
	_, err = s.Resolve(ctx, legacy, Payload{OrgID: "O1", Reason: "via legacy"})
	require.NoError(t, err)

	target, err := LineShiftTargetID("2025-06-01", "day", "l1")
	require.NoError(t, err)
	canonical, err := CanonicalKey("resolve_no_go", TargetTypeLineShift, target)
	require.NoError(t, err)
	got, err := s.Resolve(ctx, canonical, Payload{OrgID: "O1", Reason: "via canonical"})
	require.NoError(t, err)

	assert.Equal(t, legacy, canonical)
	assert.Equal(t, int64(1), countRows(t, db))
	assert.Equal(t, "via canonical", got.Reason)
	assert.Equal(t, TargetTypeLineShift, got.TargetType)
}

func TestResolve_OrganizationsOwnSeparateRows(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	target, err := LineShiftTargetID("2025-06-01", "Day", "L1")
	require.NoError(t, err)
	key := NaturalKey{DecisionType: "resolve_no_go", TargetType: TargetTypeLineShift, TargetID: target}

	a, err := s.Resolve(ctx, key, Payload{OrgID: "OrgA", SiteID: "S1", Reason: "A's reason"})
	require.NoError(t, err)
	b, err := s.Resolve(ctx, key, Payload{OrgID: "OrgB", SiteID: "S9", Reason: "B's reason"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), countRows(t, db))
	assert.NotEqual(t, a.ID, b.ID)

	gotA, err := s.Get(ctx, "OrgA", key)
	require.NoError(t, err)
	assert.Equal(t, "A's reason", gotA.Reason)
	assert.Equal(t, "S1", gotA.SiteID)

	ok, err := s.Supersede(ctx, "OrgB", key, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	activeA, err := s.ListActive(ctx, "OrgA", "resolve_no_go", TargetTypeLineShift, []string{target})
	require.NoError(t, err)
	assert.Equal(t, []string{target}, activeA)

	activeB, err := s.ListActive(ctx, "OrgB", "resolve_no_go", TargetTypeLineShift, []string{target})
	require.NoError(t, err)
	assert.Equal(t, []string{}, activeB)

	activeC, err := s.ListActive(ctx, "OrgC", "resolve_no_go", TargetTypeLineShift, []string{target})
	require.NoError(t, err)
	assert.Equal(t, []string{}, activeC)
}

func TestResolve_ConcurrentWritersConverge(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	key := NaturalKey{DecisionType: "acknowledge_warning", TargetType: "station", TargetID: "st-1"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Resolve(ctx, key, Payload{OrgID: "O1", Reason: "ack"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), countRows(t, db))
}

func TestResolve_Validation(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Resolve(ctx, NaturalKey{DecisionType: "resolve_no_go"}, Payload{})
	assert.ErrorContains(t, err, "target_type, target_id")

	key := NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: "st-1"}
	_, err = s.Resolve(ctx, key, Payload{OrgID: "O1", RootCause: json.RawMessage(`{not json`)})
	assert.ErrorContains(t, err, "root_cause")

	_, err = s.Resolve(ctx, key, Payload{Reason: "no org"})
	assert.ErrorContains(t, err, "organization is required")
}

func TestListActiveAndSupersede(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"st-3", "st-1", "st-2"} {
		_, err := s.Resolve(ctx, NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: id}, Payload{OrgID: "O1"})
		require.NoError(t, err)
	}
	_, err := s.Resolve(ctx, NaturalKey{DecisionType: "acknowledge_warning", TargetType: "station", TargetID: "st-4"}, Payload{OrgID: "O1"})
	require.NoError(t, err)

	active, err := s.ListActive(ctx, "O1", "resolve_no_go", "station", []string{"st-1", "st-2", "st-3", "st-4", "st-5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"st-1", "st-2", "st-3"}, active)

	ok, err := s.Supersede(ctx, "O1", NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: "st-2"}, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	active, err = s.ListActive(ctx, "O1", "resolve_no_go", "station", []string{"st-1", "st-2", "st-3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"st-1", "st-3"}, active)

	// Resolving again reactivates.
	rec, err := s.Resolve(ctx, NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: "st-2"}, Payload{OrgID: "O1"})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)

	ok, err = s.Supersede(ctx, "O1", NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: "nope"}, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := s.ListActive(ctx, "O1", "resolve_no_go", "station", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, empty)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := setupTestStore(t)
	got, err := s.Get(context.Background(), "O1", NaturalKey{DecisionType: "x", TargetType: "y", TargetID: "z"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

// The postgres dialect must resolve conflicts on the natural key columns
// and replace only the mutable fields.
func TestResolve_PostgresUpsertStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := NewStore(db)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	key := NaturalKey{DecisionType: "resolve_no_go", TargetType: "station", TargetID: "st-1"}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "execution_decisions"`) + ".*" +
		regexp.QuoteMeta(`ON CONFLICT ("org_id","decision_type","target_type","target_id") DO UPDATE SET `+
			`"reason"="excluded"."reason","root_cause"="excluded"."root_cause","actions"="excluded"."actions",`+
			`"status"="excluded"."status","updated_by"="excluded"."updated_by","updated_at"="excluded"."updated_at"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := sqlmock.NewRows([]string{"id", "org_id", "decision_type", "target_type", "target_id", "reason", "status"}).
		AddRow("d-1", "O1", "resolve_no_go", "station", "st-1", "second", "active")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "execution_decisions" WHERE org_id = $1 AND decision_type = $2 AND target_type = $3 AND target_id = $4`)).
		WillReturnRows(rows)

	rec, err := s.Resolve(context.Background(), key, Payload{OrgID: "O1", Reason: "second"})
	require.NoError(t, err)
	assert.Equal(t, "d-1", rec.ID)
	assert.Equal(t, "second", rec.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
