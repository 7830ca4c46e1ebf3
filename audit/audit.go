package audit

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"versechain/native/chain"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("audit store path must be configured")

// ChainEvent is the persisted form of one chain lifecycle event.
type ChainEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ChainID   string `gorm:"index"`
	Verse     string `gorm:"index"`
	Principal string `gorm:"index"`
	Type      string `gorm:"index"`
	StepIndex int
	Kind      string
	Leverage  string
	Value     string
	At        int64
	CreatedAt time.Time
}

// Store records chain lifecycle events in a sqlite-compatible database.
// Writes are drained by a background worker so the engine never blocks on
// the recorder; events are dropped with a log line if the queue overflows.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	queue  chan chain.Event
	done   chan struct{}
}

// Open initialises the audit store at the given DSN and starts the writer.
func Open(path string, logger *slog.Logger) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ChainEvent{}); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		queue:  make(chan chain.Event, 256),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

// RecordChainEvent queues one lifecycle event for persistence.
func (s *Store) RecordChainEvent(event chain.Event) {
	if s == nil {
		return
	}
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("audit queue full, dropping event",
			"chain", event.ChainID, "type", event.Type)
	}
}

func (s *Store) drain() {
	defer close(s.done)
	for event := range s.queue {
		record := &ChainEvent{
			ChainID:   event.ChainID,
			Verse:     event.Verse,
			Principal: event.Principal,
			Type:      event.Type,
			StepIndex: event.StepIndex,
			Kind:      event.Kind,
			Leverage:  event.Leverage,
			Value:     event.Value,
			At:        event.At,
		}
		if err := s.db.Create(record).Error; err != nil {
			s.logger.Error("audit write failed",
				"chain", event.ChainID, "type", event.Type, "error", err)
		}
	}
}

// Close flushes queued events and releases the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	close(s.queue)
	<-s.done
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EventsForChain returns the recorded history of one chain in insertion order.
func (s *Store) EventsForChain(chainID string) ([]ChainEvent, error) {
	if s == nil {
		return nil, errors.New("audit store not configured")
	}
	var events []ChainEvent
	if err := s.db.Where("chain_id = ?", chainID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
