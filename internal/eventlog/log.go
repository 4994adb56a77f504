package eventlog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/domain"
)

const subscriberBuffer = 64

// Log is an append-only, in-memory sequence of envelopes numbered from 1.
// When backed by a Journal every append is written through, and a new Log
// replays the journal so sequence numbers continue across restarts.
type Log struct {
	mu      sync.RWMutex
	entries []Envelope
	lastSeq uint64
	journal *Journal
	subs    map[int]chan Envelope
	nextSub int
	logger  *zap.Logger
}

// NewLog creates a Log. journal may be nil for a purely in-memory log.
func NewLog(journal *Journal, logger *zap.Logger) (*Log, error) {
	l := &Log{
		journal: journal,
		subs:    make(map[int]chan Envelope),
		logger:  logger,
	}
	if journal == nil {
		return l, nil
	}

	err := journal.Scan(0, func(env Envelope) error {
		l.entries = append(l.entries, env)
		l.lastSeq = env.Seq
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying journal: %w", err)
	}
	logger.Info("event log replayed", zap.Int("events", len(l.entries)), zap.Uint64("last_seq", l.lastSeq))
	return l, nil
}

// Append records ev at time at and fans it out to subscribers. Nothing is
// recorded if the journal write fails.
func (l *Log) Append(ev domain.Event, at time.Time) (Envelope, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	env, err := newEnvelope(l.lastSeq+1, ev, at)
	if err != nil {
		return Envelope{}, err
	}
	if l.journal != nil {
		if err := l.journal.Append(env); err != nil {
			return Envelope{}, fmt.Errorf("journaling event %d: %w", env.Seq, err)
		}
	}

	l.entries = append(l.entries, env)
	l.lastSeq = env.Seq

	for id, ch := range l.subs {
		select {
		case ch <- env:
		default:
			l.logger.Warn("dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.Uint64("seq", env.Seq),
			)
		}
	}
	return env, nil
}

// Since returns up to limit envelopes with Seq > seq, oldest first.
func (l *Log) Since(seq uint64, limit int) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Seq > seq
	})
	end := len(l.entries)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	result := make([]Envelope, end-start)
	copy(result, l.entries[start:end])
	return result
}

// LastSeq returns the sequence number of the newest envelope, or 0.
func (l *Log) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeq
}

// Subscribe returns a channel receiving every envelope appended from now
// on, and a function that unsubscribes and closes the channel. Envelopes
// are dropped for subscribers that fall behind.
func (l *Log) Subscribe() (<-chan Envelope, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan Envelope, subscriberBuffer)
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
}
