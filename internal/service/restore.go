package service

import (
	"encoding/json"
	"fmt"

	"github.com/efreitasn/custodex/internal/domain"
	"github.com/efreitasn/custodex/internal/engine"
	"github.com/efreitasn/custodex/internal/eventlog"
	"github.com/efreitasn/custodex/internal/ledger"
)

const identityKey = "exchange"

// Identity is the exchange account and fee schedule a journal was written
// under. Replaying its events under another identity would settle the
// same fills differently.
type Identity struct {
	Address    domain.Address `json:"address"`
	FeeAccount domain.Address `json:"fee_account"`
	FeePercent int64          `json:"fee_percent"`
}

// PinIdentity returns cfg with the exchange address the journal was
// written under. A fresh journal records cfg, with a new address if cfg
// has none. It fails when the journal was written with another fee
// schedule or address, or holds events but no identity.
func PinIdentity(j *eventlog.Journal, cfg engine.Config) (engine.Config, error) {
	var id Identity
	found, err := j.Meta(identityKey, &id)
	if err != nil {
		return cfg, fmt.Errorf("reading exchange identity: %w", err)
	}

	if found {
		if id.FeeAccount != cfg.FeeAccount || id.FeePercent != cfg.FeePercent {
			return cfg, fmt.Errorf("journal was written with fee account %s at %d%%, configured %s at %d%%",
				id.FeeAccount, id.FeePercent, cfg.FeeAccount, cfg.FeePercent)
		}
		if !cfg.Address.IsNull() && cfg.Address != id.Address {
			return cfg, fmt.Errorf("journal was written by exchange %s, configured %s", id.Address, cfg.Address)
		}
		cfg.Address = id.Address
		return cfg, nil
	}

	last, err := j.LastSeq()
	if err != nil {
		return cfg, fmt.Errorf("reading journal: %w", err)
	}
	if last > 0 {
		return cfg, fmt.Errorf("journal holds %d events but no exchange identity", last)
	}

	if cfg.Address.IsNull() {
		cfg.Address = domain.NewAddress()
	}
	id = Identity{Address: cfg.Address, FeeAccount: cfg.FeeAccount, FeePercent: cfg.FeePercent}
	if err := j.SetMeta(identityKey, id); err != nil {
		return cfg, fmt.Errorf("recording exchange identity: %w", err)
	}
	return cfg, nil
}

// Restore rebuilds tokens, custody and orders by running the operation
// behind every envelope again, oldest first, on empty state. It stops at
// the first envelope whose outcome differs from the recorded one.
func Restore(envs []eventlog.Envelope, tokens *ledger.Registry, ex *engine.Exchange) error {
	for _, env := range envs {
		if err := replay(env, tokens, ex); err != nil {
			return fmt.Errorf("replaying event %d (%s): %w", env.Seq, env.Name, err)
		}
	}
	return nil
}

func decode[E domain.Event](env eventlog.Envelope) (E, error) {
	var ev E
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decoding payload: %w", err)
	}
	return ev, nil
}

func replay(env eventlog.Envelope, tokens *ledger.Registry, ex *engine.Exchange) error {
	switch env.Name {
	case domain.EventDeploy:
		ev, err := decode[domain.DeployEvent](env)
		if err != nil {
			return err
		}
		t, err := ledger.NewToken(ev.Token, ev.Name, ev.Symbol, ev.TotalSupply, ev.Deployer)
		if err != nil {
			return err
		}
		tokens.Add(t)

	case domain.EventTransfer:
		ev, err := decode[domain.TransferEvent](env)
		if err != nil {
			return err
		}
		t, err := tokens.Get(ev.Token)
		if err != nil {
			return err
		}
		if ev.Spender.IsNull() {
			_, err = t.Transfer(ev.From, ev.To, ev.Value)
		} else {
			_, err = t.TransferFrom(ev.Spender, ev.From, ev.To, ev.Value)
		}
		return err

	case domain.EventApproval:
		ev, err := decode[domain.ApprovalEvent](env)
		if err != nil {
			return err
		}
		t, err := tokens.Get(ev.Token)
		if err != nil {
			return err
		}
		_, err = t.Approve(ev.Owner, ev.Spender, ev.Value)
		return err

	case domain.EventDeposit:
		ev, err := decode[domain.DepositEvent](env)
		if err != nil {
			return err
		}
		got, err := ex.DepositToken(ev.User, ev.Token, ev.Amount, ev.Timestamp)
		if err != nil {
			return err
		}
		if !got.Balance.Equal(ev.Balance) {
			return fmt.Errorf("custody balance %s, recorded %s", got.Balance, ev.Balance)
		}

	case domain.EventWithdraw:
		ev, err := decode[domain.WithdrawEvent](env)
		if err != nil {
			return err
		}
		got, err := ex.WithdrawToken(ev.User, ev.Token, ev.Amount, ev.Timestamp)
		if err != nil {
			return err
		}
		if !got.Balance.Equal(ev.Balance) {
			return fmt.Errorf("custody balance %s, recorded %s", got.Balance, ev.Balance)
		}

	case domain.EventOrder:
		ev, err := decode[domain.OrderEvent](env)
		if err != nil {
			return err
		}
		id, _, err := ex.MakeOrder(ev.User, ev.TokenGet, ev.AmountGet, ev.TokenGive, ev.AmountGive, ev.Timestamp)
		if err != nil {
			return err
		}
		if id != ev.ID {
			return fmt.Errorf("order id %d, recorded %d", id, ev.ID)
		}

	case domain.EventCancel:
		ev, err := decode[domain.CancelEvent](env)
		if err != nil {
			return err
		}
		_, err = ex.CancelOrder(ev.User, ev.ID, ev.Timestamp)
		return err

	case domain.EventTrade:
		ev, err := decode[domain.TradeEvent](env)
		if err != nil {
			return err
		}
		got, err := ex.FillOrder(ev.Filler, ev.OrderID, ev.ExecutedAt)
		if err != nil {
			return err
		}
		if !got.Fee.Equal(ev.Fee) {
			return fmt.Errorf("fee %s, recorded %s", got.Fee, ev.Fee)
		}

	default:
		return fmt.Errorf("unknown event")
	}
	return nil
}
