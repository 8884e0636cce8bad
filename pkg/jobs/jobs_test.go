package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LingByte/TutorConnect/pkg/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakePurger struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePurger) PurgeBefore(_ context.Context, t time.Time) (int64, error) {
	f.cutoff = t
	return f.n, f.err
}

type fakeSource struct {
	snap signaling.Snapshot
	err  error
}

func (f fakeSource) Snapshot(context.Context) (signaling.Snapshot, error) {
	return f.snap, f.err
}

func newObserved() (*Scheduler, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(zap.New(core))
	s.now = func() time.Time { return time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC) }
	return s, logs
}

func TestRetention(t *testing.T) {
	s, logs := newObserved()
	p := &fakePurger{n: 7}

	s.retention(p, 30)()
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), p.cutoff)
	require.Equal(t, 1, logs.FilterMessage("call record retention").Len())
	assert.Equal(t, int64(7), logs.All()[0].ContextMap()["purged"])

	p.err = errors.New("db gone")
	s.retention(p, 30)()
	assert.Equal(t, 1, logs.FilterMessage("call record retention failed").Len())
}

func TestRetentionDisabled(t *testing.T) {
	s, logs := newObserved()
	p := &fakePurger{}
	s.retention(p, 0)()
	assert.True(t, p.cutoff.IsZero())
	assert.Zero(t, logs.Len())
}

func TestRoomStats(t *testing.T) {
	s, logs := newObserved()
	src := fakeSource{snap: signaling.Snapshot{
		Connections: 5,
		Rooms: []signaling.RoomSnapshot{
			{ID: "a", Members: []string{"1", "2", "3"}},
			{ID: "b", Members: []string{"4"}},
		},
	}}

	s.roomStats(src)()
	entries := logs.FilterMessage("room stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(5), fields["connections"])
	assert.Equal(t, int64(2), fields["rooms"])
	assert.Equal(t, int64(4), fields["participants"])
	assert.Equal(t, int64(3), fields["largest_room"])

	s.roomStats(fakeSource{err: signaling.ErrHubClosed})()
	assert.Equal(t, 1, logs.FilterMessage("room stats unavailable").Len())
}

func TestScheduleSpecs(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddRetention("@daily", &fakePurger{}, 90))
	require.NoError(t, s.AddRoomStats("@every 1m", fakeSource{}))
	assert.Error(t, s.AddRoomStats("not a spec", fakeSource{}))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
