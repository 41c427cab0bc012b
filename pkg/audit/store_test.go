package audit

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := storetest.NewDB(t, storetest.Options{Extra: []any{&EventRecord{}}})
	return NewStore(db)
}

func TestStore_Append(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Append(ctx, &EventRecord{
		OrgID:             "O1",
		SiteID:            "S1",
		Action:            "resolve_no_go",
		TargetType:        "line_shift",
		TargetID:          "t-1",
		Meta:              store.JSONAny{"reason": "operator on break"},
		PolicyFingerprint: "sha256:abc",
		CreatedBy:         "alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.GetByID(ctx, "O1", id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "resolve_no_go", got.Action)
	assert.Equal(t, "operator on break", got.Meta["reason"])
	assert.Equal(t, "sha256:abc", got.PolicyFingerprint)
	assert.False(t, got.CreatedAt.IsZero())

	other, err := s.GetByID(ctx, "O2", id)
	require.NoError(t, err)
	assert.Nil(t, other, "events are scoped to their organization")

	_, err = s.Append(ctx, &EventRecord{OrgID: "O1"})
	assert.Error(t, err)
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, &EventRecord{
			OrgID:      "O1",
			Action:     "resolve_no_go",
			TargetType: "line_shift",
			TargetID:   "t-1",
			Meta:       store.JSONAny{"n": fmt.Sprint(i)},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, &EventRecord{OrgID: "O1", Action: "update_station", TargetType: "station", TargetID: "st-1", CreatedAt: base})
	require.NoError(t, err)
	_, err = s.Append(ctx, &EventRecord{OrgID: "O2", Action: "resolve_no_go", TargetType: "line_shift", TargetID: "t-1", CreatedAt: base})
	require.NoError(t, err)

	filter := ListFilter{OrgID: "O1", TargetType: "line_shift", TargetID: "t-1"}

	page, next, total, err := s.List(ctx, filter, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "4", page[0].Meta["n"], "newest first")
	assert.Equal(t, "3", page[1].Meta["n"])
	require.NotEmpty(t, next)

	var seen []string
	for _, e := range page {
		seen = append(seen, e.Meta["n"].(string))
	}
	for next != "" {
		page, next, _, err = s.List(ctx, filter, 2, next)
		require.NoError(t, err)
		for _, e := range page {
			seen = append(seen, e.Meta["n"].(string))
		}
	}
	assert.Equal(t, []string{"4", "3", "2", "1", "0"}, seen)

	all, _, total, err := s.List(ctx, ListFilter{OrgID: "O1"}, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, all, 6)

	byAction, _, total, err := s.List(ctx, ListFilter{OrgID: "O1", Action: "update_station"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "st-1", byAction[0].TargetID)
}

func TestStore_ListSameTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	want := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := s.Append(ctx, &EventRecord{OrgID: "O1", Action: "resolve_no_go", CreatedAt: at})
		require.NoError(t, err)
		want[id] = true
	}
	_, err := s.Append(ctx, &EventRecord{OrgID: "O1", Action: "resolve_no_go", CreatedAt: at.Add(-time.Second)})
	require.NoError(t, err)

	var ids []string
	page, next, total, err := s.List(ctx, ListFilter{OrgID: "O1"}, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for {
		require.Len(t, page, 1)
		ids = append(ids, page[0].ID)
		if next == "" {
			break
		}
		page, next, _, err = s.List(ctx, ListFilter{OrgID: "O1"}, 1, next)
		require.NoError(t, err)
	}

	require.Len(t, ids, 4, "every event is reachable")
	for _, id := range ids[:3] {
		assert.True(t, want[id], "events at the shared timestamp come first")
	}
	assert.False(t, want[ids[3]])
	assert.Greater(t, ids[0], ids[1])
	assert.Greater(t, ids[1], ids[2])
}

func TestStore_ListErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, _, err := s.List(ctx, ListFilter{}, 10, "")
	assert.ErrorContains(t, err, "organization is required")

	_, _, _, err = s.List(ctx, ListFilter{OrgID: "O1"}, 10, "yesterday")
	assert.ErrorContains(t, err, "invalid page token")

	// A bare timestamp carries no tie-breaking id.
	bare := base64.RawURLEncoding.EncodeToString([]byte("2025-06-01T08:00:00Z"))
	_, _, _, err = s.List(ctx, ListFilter{OrgID: "O1"}, 10, bare)
	assert.ErrorContains(t, err, "invalid page token")
}
