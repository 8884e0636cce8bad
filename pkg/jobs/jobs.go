package jobs

import (
	"context"
	"time"

	"github.com/LingByte/TutorConnect/pkg/signaling"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

type Purger interface {
	PurgeBefore(ctx context.Context, t time.Time) (int64, error)
}

type SnapshotSource interface {
	Snapshot(ctx context.Context) (signaling.Snapshot, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger: logger,
		now:    time.Now,
	}
}

// AddRetention purges call records older than days on spec.
func (s *Scheduler) AddRetention(spec string, p Purger, days int) error {
	_, err := s.cron.AddFunc(spec, s.retention(p, days))
	return err
}

// AddRoomStats logs the room table on spec.
func (s *Scheduler) AddRoomStats(spec string, src SnapshotSource) error {
	_, err := s.cron.AddFunc(spec, s.roomStats(src))
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) retention(p Purger, days int) func() {
	return func() {
		if days <= 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		cutoff := s.now().AddDate(0, 0, -days)
		n, err := p.PurgeBefore(ctx, cutoff)
		if err != nil {
			s.logger.Error("call record retention failed", zap.Time("cutoff", cutoff), zap.Error(err))
			return
		}
		s.logger.Info("call record retention", zap.Time("cutoff", cutoff), zap.Int64("purged", n))
	}
}

func (s *Scheduler) roomStats(src SnapshotSource) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := src.Snapshot(ctx)
		if err != nil {
			s.logger.Warn("room stats unavailable", zap.Error(err))
			return
		}
		participants, largest := 0, 0
		for _, r := range snap.Rooms {
			participants += len(r.Members)
			if len(r.Members) > largest {
				largest = len(r.Members)
			}
		}
		s.logger.Info("room stats",
			zap.Int("connections", snap.Connections),
			zap.Int("rooms", len(snap.Rooms)),
			zap.Int("participants", participants),
			zap.Int("largest_room", largest))
	}
}
