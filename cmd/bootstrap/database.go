package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/LingByte/TutorConnect/pkg/config"
	"github.com/LingByte/TutorConnect/pkg/logger"
	"github.com/LingByte/TutorConnect/pkg/store"
	"gorm.io/gorm"
)

type Options struct {
	AutoMigrate bool // create or update the call_records table
}

// SetupDatabase opens the configured database and prepares the call record
// store. Records a previous run left ongoing are completed.
func SetupDatabase(w io.Writer, opts *Options) (*gorm.DB, *store.Store, error) {
	cfg := config.GlobalConfig
	db, err := store.Open(cfg.DBDriver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	fmt.Fprintf(w, "database ready: driver=%s\n", cfg.DBDriver)

	s := store.New(db, logger.Named("store"))
	if opts != nil && opts.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(w, "database migrated")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := s.CloseDangling(ctx, time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("close dangling call records: %w", err)
	}
	if n > 0 {
		fmt.Fprintf(w, "closed %d call records left open by a previous run\n", n)
	}
	return db, s, nil
}
