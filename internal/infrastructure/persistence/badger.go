package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// BadgerConfig configures the embedded Badger database
type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set
	Path     string
	InMemory bool
	// SyncWrites makes every Save durable before it returns
	SyncWrites bool
	// GCInterval runs value log garbage collection; 0 disables it
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns a durable configuration rooted at path
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration without disk I/O, for tests
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// BadgerStore persists strategy records in Badger
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
}

// OpenBadger opens or creates the database described by cfg
func OpenBadger(cfg BadgerConfig, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("badger")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required unless in memory")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(s.done)
	}
	return s, nil
}

func recordKey(ownerID, name string) []byte {
	return []byte("strategy/" + ownerID + "/" + name)
}

func ownerPrefix(ownerID string) []byte {
	return []byte("strategy/" + ownerID + "/")
}

// Load returns every record saved for ownerID, in key order. Values that
// do not decode are logged and skipped.
func (s *BadgerStore) Load(ctx context.Context, ownerID string) ([]strategy.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []strategy.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := ownerPrefix(ownerID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec strategy.Record
			err := item.Value(func(val []byte) error {
				var err error
				rec, err = decode(val)
				return err
			})
			if err != nil {
				s.logger.Warn("skipping undecodable strategy",
					zap.String("owner", ownerID),
					zap.ByteString("key", item.KeyCopy(nil)),
					zap.Error(err),
				)
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load strategies for %q: %w", ownerID, err)
	}
	return records, nil
}

// Save stores rec for ownerID, replacing a record with the same name
func (s *BadgerStore) Save(ctx context.Context, ownerID string, rec strategy.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(ownerID, rec.Name), data)
	}); err != nil {
		return fmt.Errorf("save strategy %q for %q: %w", rec.Name, ownerID, err)
	}
	return nil
}

// Close stops garbage collection and closes the database
func (s *BadgerStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// one pass rewrites at most one file; repeat until nothing is left
			for s.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

// badgerLogger routes Badger's internal logging through zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
