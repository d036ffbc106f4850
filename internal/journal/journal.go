// Package journal persists scanned chunks on disk so an interrupted scan
// can be resumed.
package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

var (
	ErrCorrupt = errors.New("journal: corrupt entry")
	ErrClosed  = errors.New("journal: closed")
)

const digestSize = 16

// Journal stores the raw chunk strings of one scan session in arrival
// order. Sessions sharing a directory are isolated by key prefix.
type Journal struct {
	db      *badger.DB
	prefix  []byte
	next    uint64
	session string
	logger  zerolog.Logger
}

type Options struct {
	// InMemory keeps the store in memory; Dir is ignored.
	InMemory bool
	Logger   zerolog.Logger
}

// Open opens or creates the store at dir and positions the session.
func Open(dir, session string, opts Options) (*Journal, error) {
	bopts := badger.DefaultOptions(dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dir, err)
	}
	j := &Journal{
		db:      db,
		prefix:  SessionPrefix(session),
		session: session,
		logger:  opts.Logger,
	}
	n, err := j.lastSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.next = n
	j.logger.Debug().Str("session", session).Uint64("entries", n).Msg("journal: opened")
	return j, nil
}

// SessionPrefix is session/<xxh3 of name>/chunk/.
func SessionPrefix(session string) []byte {
	return fmt.Appendf(nil, "session/%016x/chunk/", xxh3.HashString(session))
}

func (j *Journal) key(seq uint64) []byte {
	k := make([]byte, len(j.prefix), len(j.prefix)+8)
	copy(k, j.prefix)
	return binary.BigEndian.AppendUint64(k, seq)
}

func (j *Journal) lastSeq() (uint64, error) {
	var next uint64
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		// Reverse iteration seeks from just past the prefix.
		seek := append(append([]byte(nil), j.prefix...), 0xFF)
		it.Seek(seek)
		if it.ValidForPrefix(j.prefix) {
			k := it.Item().Key()
			next = binary.BigEndian.Uint64(k[len(j.prefix):]) + 1
		}
		return nil
	})
	return next, err
}

// Record appends raw with an xxh3-128 digest so Replay can detect damage.
func (j *Journal) Record(raw string) error {
	if j.db == nil {
		return ErrClosed
	}
	sum := xxh3.HashString128(raw).Bytes()
	val := make([]byte, 0, digestSize+len(raw))
	val = append(val, sum[:]...)
	val = append(val, raw...)
	seq := j.next
	err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(j.key(seq), val)
	})
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	j.next++
	return nil
}

// Replay calls fn for every recorded chunk in recording order and stops at
// the first error fn returns.
func (j *Journal) Replay(fn func(raw string) error) error {
	if j.db == nil {
		return ErrClosed
	}
	type rec struct {
		seq uint64
		raw string
	}
	var recs []rec
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = j.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(j.prefix):])
			err := item.Value(func(val []byte) error {
				raw, err := verify(val)
				if err != nil {
					return fmt.Errorf("%w: seq %d", err, seq)
				}
				recs = append(recs, rec{seq: seq, raw: raw})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(recs, func(a, b int) bool { return recs[a].seq < recs[b].seq })
	for _, r := range recs {
		if err := fn(r.raw); err != nil {
			return err
		}
	}
	return nil
}

func verify(val []byte) (string, error) {
	if len(val) < digestSize {
		return "", ErrCorrupt
	}
	raw := val[digestSize:]
	sum := xxh3.Hash128(raw).Bytes()
	if !bytes.Equal(sum[:], val[:digestSize]) {
		return "", ErrCorrupt
	}
	return string(raw), nil
}

// Len is the number of recorded chunks in this session.
func (j *Journal) Len() uint64 { return j.next }

// Reset drops every entry of this session.
func (j *Journal) Reset() error {
	if j.db == nil {
		return ErrClosed
	}
	if err := j.db.DropPrefix(j.prefix); err != nil {
		return fmt.Errorf("journal: reset: %w", err)
	}
	j.next = 0
	j.logger.Debug().Str("session", j.session).Msg("journal: reset")
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
