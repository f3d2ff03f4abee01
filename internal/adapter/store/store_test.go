package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err, "Open(%q)", path)
	t.Cleanup(func() { s.Close() })
	return s
}

func newReport(area string) domain.SnowReport {
	created := time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC)
	return domain.SnowReport{
		Area:      area,
		StartTime: "2024-01-15T05:00",
		EndTime:   "2024-01-15T09:30",
		CreatedAt: &created,
	}
}

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, newReport("中央地区"))
	require.NoError(t, err)
	second, err := s.Create(ctx, newReport("港地区"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, newReport("中央地区"))
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Area, got.Area)
	assert.Equal(t, created.StartTime, got.StartTime)
	assert.Equal(t, created.EndTime, got.EndTime)
	require.NotNil(t, got.CreatedAt)
	assert.True(t, created.CreatedAt.Equal(*got.CreatedAt))
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Get(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFiltersAndLimits(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, area := range []string{"中央地区", "港地区", "中央地区", "中央地区"} {
		_, err := s.Create(ctx, newReport(area))
		require.NoError(t, err)
	}

	all, err := s.List(ctx, domain.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for i, r := range all {
		assert.Equal(t, int64(i+1), r.ID)
	}

	central, err := s.List(ctx, domain.ReportFilter{Area: "中央地区", Limit: 2})
	require.NoError(t, err)
	require.Len(t, central, 2)
	assert.Equal(t, int64(1), central[0].ID)
	assert.Equal(t, int64(3), central[1].ID)

	none, err := s.List(ctx, domain.ReportFilter{Area: "山手地区"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOutbox(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, newReport("中央地区"))
		require.NoError(t, err)
	}

	n, err := s.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	batch, err := s.PendingBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)
	assert.Equal(t, int64(2), batch[1].ID)

	require.NoError(t, s.MarkPublished(ctx, []int64{batch[0].ID, batch[1].ID}))

	batch, err = s.PendingBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(3), batch[0].ID)

	// Published reports stay readable.
	_, err = s.Get(ctx, 1)
	require.NoError(t, err)
}

func TestPendingBatchZero(t *testing.T) {
	s := testStore(t)

	batch, err := s.PendingBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestCancelledContext(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, newReport("中央地区"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.CheckReadiness(ctx), context.Canceled)
}

func TestReopenKeepsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, newReport("中央地区"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r, err := s.Create(ctx, newReport("港地区"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.ID)
	require.NoError(t, s.CheckReadiness(ctx))
}
