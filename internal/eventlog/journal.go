package eventlog

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const (
	eventPrefix  = "event/"
	cursorPrefix = "cursor/"
	metaPrefix   = "meta/"
)

// Journal is a durable, ordered store of envelopes backed by pebble.
// Events live under event/<seq>, consumer positions under cursor/<name>
// and JSON settings the events depend on under meta/<name>.
type Journal struct {
	db *pebble.DB
}

// OpenJournal opens (or creates) a journal in dir.
func OpenJournal(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening journal at %s: %w", dir, err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append durably writes env under its sequence number.
func (j *Journal) Append(env Envelope) error {
	val, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return j.db.Set(eventKey(env.Seq), val, pebble.Sync)
}

// Scan calls fn for every envelope with Seq >= from, in order, stopping at
// the first error fn returns.
func (j *Journal) Scan(from uint64, fn func(Envelope) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: eventKey(from),
		UpperBound: []byte(eventPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var env Envelope
		if err := json.Unmarshal(iter.Value(), &env); err != nil {
			return fmt.Errorf("decoding %s: %w", iter.Key(), err)
		}
		if err := fn(env); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq returns the highest sequence number stored, or 0 when empty.
func (j *Journal) LastSeq() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(eventPrefix),
		UpperBound: []byte(eventPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseEventKey(iter.Key())
}

// Cursor returns the last sequence number consumer name has processed,
// or 0 if it has never stored one.
func (j *Journal) Cursor(name string) (uint64, error) {
	val, closer, err := j.db.Get([]byte(cursorPrefix + name))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("invalid cursor %q: %d bytes", name, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// SetCursor durably records that consumer name has processed seq.
func (j *Journal) SetCursor(name string, seq uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return j.db.Set([]byte(cursorPrefix+name), buf, pebble.Sync)
}

// Meta decodes the value stored under name into v and reports whether
// there was one.
func (j *Journal) Meta(name string, v any) (bool, error) {
	val, closer, err := j.db.Get([]byte(metaPrefix + name))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("decoding meta %q: %w", name, err)
	}
	return true, nil
}

// SetMeta durably stores v as JSON under name.
func (j *Journal) SetMeta(name string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return j.db.Set([]byte(metaPrefix+name), val, pebble.Sync)
}

func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", eventPrefix, seq))
}

func parseEventKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(eventPrefix))), "%d", &seq)
	return seq, err
}
