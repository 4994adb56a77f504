package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/eventlog"
)

func TestPublisher_RecordsEvents(t *testing.T) {
	log, err := eventlog.NewLog(nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	p := NewPublisher(log, newTestWebhookService(), zap.NewNop())

	p.Publish(domain.DepositEvent{User: testAlice, Amount: domain.Tokens(1)}, testNow)
	p.Publish(domain.TransferEvent{From: testAlice, To: testBob, Value: domain.Tokens(1)}, testNow)

	envs := log.Since(0, 0)
	if len(envs) != 2 {
		t.Fatalf("got %d events, want 2", len(envs))
	}
	if envs[0].Name != domain.EventDeposit || envs[1].Name != domain.EventTransfer {
		t.Errorf("got %s, %s", envs[0].Name, envs[1].Name)
	}
	if !envs[0].RecordedAt.Equal(testNow) {
		t.Errorf("got recorded time %s, want %s", envs[0].RecordedAt, testNow)
	}
}

func TestPublisher_NilSinks(t *testing.T) {
	var nilPublisher *Publisher
	nilPublisher.Publish(domain.DepositEvent{}, testNow)

	p := NewPublisher(nil, nil, zap.NewNop())
	p.Publish(domain.DepositEvent{}, testNow)
}

func TestCommit_TimeNeverRunsBackwards(t *testing.T) {
	log, err := eventlog.NewLog(nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	p := NewPublisher(log, nil, zap.NewNop())

	readings := []time.Time{testNow, testNow.Add(-time.Minute), testNow.Add(time.Second)}
	next := 0
	clock := func() time.Time {
		at := readings[next]
		next++
		return at
	}

	var seen []time.Time
	for range readings {
		_, err := commit(p, clock, func(at time.Time) (domain.DepositEvent, error) {
			seen = append(seen, at)
			return domain.DepositEvent{User: testAlice, Timestamp: at}, nil
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	want := []time.Time{testNow, testNow, testNow.Add(time.Second)}
	envs := log.Since(0, 0)
	if len(envs) != len(want) {
		t.Fatalf("got %d events, want %d", len(envs), len(want))
	}
	for i := range want {
		if !seen[i].Equal(want[i]) || !envs[i].RecordedAt.Equal(want[i]) {
			t.Errorf("commit %d: got %s (recorded %s), want %s", i, seen[i], envs[i].RecordedAt, want[i])
		}
	}
}

func TestCommit_FailureRecordsNothing(t *testing.T) {
	log, err := eventlog.NewLog(nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	p := NewPublisher(log, nil, zap.NewNop())
	clock := func() time.Time { return testNow }

	_, err = commit(p, clock, func(time.Time) (domain.DepositEvent, error) {
		return domain.DepositEvent{}, domain.ErrInsufficientAllowance
	})
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("got error %v, want ErrInsufficientAllowance", err)
	}
	if log.LastSeq() != 0 {
		t.Errorf("got last seq %d after a failed commit, want 0", log.LastSeq())
	}

	var nilPublisher *Publisher
	ev, err := commit(nilPublisher, clock, func(at time.Time) (domain.DepositEvent, error) {
		return domain.DepositEvent{Timestamp: at}, nil
	})
	if err != nil || !ev.Timestamp.Equal(testNow) {
		t.Errorf("nil publisher: got %+v, %v", ev, err)
	}
}
