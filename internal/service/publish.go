package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/eventlog"
)

// Publisher records every notification in the event log and forwards the
// ones accounts can subscribe to as webhooks. Either sink may be nil.
type Publisher struct {
	mu       sync.Mutex
	last     time.Time
	log      *eventlog.Log
	webhooks *WebhookService
	logger   *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(log *eventlog.Log, webhooks *WebhookService, logger *zap.Logger) *Publisher {
	return &Publisher{log: log, webhooks: webhooks, logger: logger}
}

// Publish is called after the state change has committed, so a failure to
// record the event is logged rather than returned.
func (p *Publisher) Publish(ev domain.Event, at time.Time) {
	if p == nil {
		return
	}
	if p.log != nil {
		if _, err := p.log.Append(ev, at); err != nil {
			p.logger.Error("recording event", zap.String("event", ev.EventName()), zap.Error(err))
		}
	}
	if p.webhooks != nil {
		p.webhooks.Dispatch(ev, at)
	}
}

// commit runs op and publishes the event it returns as one step, so the
// event log lists events in the order their changes were applied. The
// time handed to op is read from clock inside that step and never runs
// backwards.
func commit[E domain.Event](p *Publisher, clock func() time.Time, op func(at time.Time) (E, error)) (E, error) {
	if p == nil {
		return op(clock())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	at := clock()
	if at.Before(p.last) {
		at = p.last
	}
	ev, err := op(at)
	if err != nil {
		return ev, err
	}
	p.last = at
	p.Publish(ev, at)
	return ev, nil
}
