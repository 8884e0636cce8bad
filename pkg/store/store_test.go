package store

import (
	"context"
	"testing"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s := New(db, nil)
	require.NoError(t, s.Migrate())
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestStore_RecordsOccupancyPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	events := []lifecycle.Event{
		{Type: lifecycle.RoomOpened, Room: "chem", Participants: 1, Instance: "i1", At: start},
		{Type: lifecycle.ParticipantJoined, Room: "chem", Participants: 2, At: start.Add(time.Minute)},
		{Type: lifecycle.ParticipantJoined, Room: "chem", Participants: 3, At: start.Add(2 * time.Minute)},
		{Type: lifecycle.ParticipantLeft, Room: "chem", Participants: 2, At: start.Add(3 * time.Minute)},
		{Type: lifecycle.ParticipantJoined, Room: "chem", Participants: 3, At: start.Add(4 * time.Minute)},
		{Type: lifecycle.RoomClosed, Room: "chem", At: start.Add(30 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, s.Handle(ctx, ev))
	}

	recs, err := s.Recent(ctx, "chem", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, constants.CallStatusCompleted, rec.Status)
	assert.Equal(t, 4, rec.Joins)
	assert.Equal(t, 3, rec.PeakParticipants)
	assert.Equal(t, int64(30*60), rec.DurationSeconds)
	assert.Equal(t, "i1", rec.Instance)
	require.NotNil(t, rec.EndedAt)
}

func TestStore_JoinWithoutOpenStartsRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.ParticipantJoined, Room: "bio", Participants: 2, At: time.Now()}))
	recs, err := s.Recent(ctx, "bio", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, constants.CallStatusOngoing, recs[0].Status)
	assert.Equal(t, 2, recs[0].PeakParticipants)
}

func TestStore_ReopenCompletesPreviousPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "art", Participants: 1, At: start}))
	// the matching room.closed was lost
	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "art", Participants: 1, At: start.Add(time.Hour)}))

	recs, err := s.Recent(ctx, "art", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, constants.CallStatusOngoing, recs[0].Status)
	assert.Equal(t, constants.CallStatusCompleted, recs[1].Status)
}

func TestStore_CloseDanglingAndPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "a", Participants: 1, At: old}))
	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomClosed, Room: "a", At: old.Add(time.Hour)}))
	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "b", Participants: 1, At: recent}))
	require.NoError(t, s.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "c", Participants: 1, At: recent}))

	n, err := s.CloseDangling(ctx, recent.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CloseDangling(ctx, recent.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	purged, err := s.PurgeBefore(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	recs, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, constants.CallStatusCompleted, rec.Status)
		assert.NotEqual(t, "a", rec.RoomID)
	}
}

func TestStore_AsLifecycleSink(t *testing.T) {
	s := newTestStore(t)
	d := lifecycle.NewDispatcher(8, "node", nil, nil, s)

	d.Publish(lifecycle.Event{Type: lifecycle.RoomOpened, Room: "geo", Participants: 1})
	d.Publish(lifecycle.Event{Type: lifecycle.RoomClosed, Room: "geo"})
	require.NoError(t, d.Close(context.Background()))

	recs, err := s.Recent(context.Background(), "geo", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, constants.CallStatusCompleted, recs[0].Status)
	assert.Equal(t, "node", recs[0].Instance)
	assert.Equal(t, "store", s.Name())
}
