package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var errBatchFull = errors.New("batch full")

// Relay periodically publishes journaled envelopes to Kafka, keyed by
// event name. Its cursor only advances past a batch once the whole batch
// is written, so delivery is at-least-once.
type Relay struct {
	name     string
	journal  *Journal
	writer   MessageWriter
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// NewRelay creates a relay whose position is stored under cursor name.
func NewRelay(name string, journal *Journal, writer MessageWriter, interval time.Duration, logger *zap.Logger) *Relay {
	return &Relay{
		name:     name,
		journal:  journal,
		writer:   writer,
		interval: interval,
		batch:    100,
		logger:   logger.With(zap.String("relay", name)),
	}
}

// Start runs the relay in a background goroutine until ctx is cancelled.
// The returned channel is closed once the relay has stopped.
func (r *Relay) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return done
}

// Run ticks at the configured interval and relays pending envelopes. It
// returns when ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.tick(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("relay tick failed", zap.Error(err))
			}
		}
	}
}

// tick publishes every pending envelope in batches and returns how many
// it sent.
func (r *Relay) tick(ctx context.Context) (int, error) {
	sent := 0
	for {
		n, err := r.relayBatch(ctx)
		sent += n
		if err != nil || n < r.batch {
			return sent, err
		}
	}
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	cursor, err := r.journal.Cursor(r.name)
	if err != nil {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, r.batch)
	var last uint64
	err = r.journal.Scan(cursor+1, func(env Envelope) error {
		val, err := json.Marshal(env)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.Name),
			Value: val,
			Time:  env.RecordedAt,
		})
		last = env.Seq
		if len(msgs) == r.batch {
			return errBatchFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.journal.SetCursor(r.name, last); err != nil {
		return 0, err
	}
	r.logger.Debug("relayed events", zap.Int("count", len(msgs)), zap.Uint64("through_seq", last))
	return len(msgs), nil
}
