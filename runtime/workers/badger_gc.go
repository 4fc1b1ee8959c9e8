package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGCWorker periodically reclaims space in the value log. Badger only
// rewrites a log file when enough of it is stale, so ErrNoRewrite is the
// common, silent outcome.
type BadgerGCWorker struct {
	db       *badger.DB
	log      *slog.Logger
	interval time.Duration
}

func NewBadgerGCWorker(db *badger.DB, log *slog.Logger, interval time.Duration) *BadgerGCWorker {
	return &BadgerGCWorker{db: db, log: log, interval: interval}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := w.db.RunValueLogGC(0.5)
			switch err {
			case nil:
				w.log.Debug("Value log GC reclaimed a file")
			case badger.ErrNoRewrite:
				// Nothing worth rewriting yet
			default:
				w.log.Warn("Value log GC failed", "error", err)
			}
		}
	}
}
