package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/LingByte/TutorConnect/pkg/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxRecent = 200

// Open connects to the configured database. Supported drivers are sqlite,
// mysql and postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "postgresql", "pg":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer; also keeps :memory: databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store keeps call records and consumes lifecycle events.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.CallRecord{})
}

func (s *Store) Name() string { return "store" }

// Handle implements lifecycle.Sink.
func (s *Store) Handle(ctx context.Context, ev lifecycle.Event) error {
	db := s.db.WithContext(ctx)
	switch ev.Type {
	case lifecycle.RoomOpened:
		// a room.closed we never saw leaves the previous period open
		if _, err := s.completeOngoing(db, ev.Room, ev.At); err != nil {
			return err
		}
		return db.Create(models.NewCallRecord(ev.Room, ev.Instance, ev.At, ev.Participants)).Error

	case lifecycle.ParticipantJoined:
		rec, err := s.ongoing(db, ev.Room)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Create(models.NewCallRecord(ev.Room, ev.Instance, ev.At, ev.Participants)).Error
		}
		if err != nil {
			return err
		}
		rec.Observe(ev.Participants)
		return db.Save(rec).Error

	case lifecycle.RoomClosed:
		n, err := s.completeOngoing(db, ev.Room, ev.At)
		if err != nil {
			return err
		}
		if n == 0 {
			s.logger.Debug("room closed without an ongoing call record", zap.String("room", ev.Room))
		}
		return nil
	}
	return nil
}

func (s *Store) ongoing(db *gorm.DB, room string) (*models.CallRecord, error) {
	var rec models.CallRecord
	err := db.Where("room_id = ? AND status = ?", room, constants.CallStatusOngoing).
		Order("started_at DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// completeOngoing completes the ongoing records of room, or of every room when
// room is empty.
func (s *Store) completeOngoing(db *gorm.DB, room string, at time.Time) (int, error) {
	q := db.Where("status = ?", constants.CallStatusOngoing)
	if room != "" {
		q = q.Where("room_id = ?", room)
	}
	var recs []models.CallRecord
	if err := q.Find(&recs).Error; err != nil {
		return 0, err
	}
	for i := range recs {
		recs[i].Complete(at)
		if err := db.Save(&recs[i]).Error; err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

// CloseDangling completes every record a previous process left ongoing. The
// registry starts empty, so none of those rooms is still occupied.
func (s *Store) CloseDangling(ctx context.Context, at time.Time) (int, error) {
	n, err := s.completeOngoing(s.db.WithContext(ctx), "", at)
	if n > 0 {
		s.logger.Info("closed dangling call records", zap.Int("count", n))
	}
	return n, err
}

// Recent returns the newest records, optionally for one room.
func (s *Store) Recent(ctx context.Context, room string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if room != "" {
		q = q.Where("room_id = ?", room)
	}
	var recs []models.CallRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// PurgeBefore deletes completed records that ended before t.
func (s *Store) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND ended_at < ?", constants.CallStatusCompleted, t.UTC()).
		Delete(&models.CallRecord{})
	return res.RowsAffected, res.Error
}
