package reassembly

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/qrlink/internal/protocol"
	"github.com/danmuck/qrlink/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrReassembly = errors.New("reassembly: conflicting or out-of-range chunk")
	ErrIncomplete = errors.New("reassembly: incomplete")
)

// MaxChunks bounds the ids a set accepts. A larger id is treated as a
// misread symbol and dropped like any unparsable chunk.
const MaxChunks = 1 << 20

// missingShown caps the ids listed in an incomplete error.
const missingShown = 16

// State is the reassembly lifecycle. Complete and Failed are terminal for
// new data; identical repeats are still accepted as no-ops once complete.
type State int

const (
	StateCollecting State = iota
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result describes what one Add did.
type Result struct {
	ID        uint64
	Last      bool
	Duplicate bool
	State     State
}

type entry struct {
	data string
	last bool
}

// Set collects chunk strings for one payload. It is not safe for
// concurrent use; the scan loop is single-threaded.
type Set struct {
	variant *protocol.Variant
	mode    frame.Mode
	logger  zerolog.Logger

	seen     map[string]struct{}
	chunks   map[uint64]entry
	maxID    uint64
	total    uint64
	hasTotal bool

	// plain mode keeps arrival order and only drops consecutive repeats.
	plain   []string
	lastRaw string

	state State
	err   error
}

type Option func(*Set)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Set) { s.logger = l }
}

func New(v *protocol.Variant, mode frame.Mode, opts ...Option) *Set {
	s := &Set{
		variant: v,
		mode:    mode,
		logger:  zerolog.Nop(),
		seen:    make(map[string]struct{}),
		chunks:  make(map[uint64]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Set) State() State { return s.state }

func (s *Set) Mode() frame.Mode { return s.mode }

// Err returns the error that moved the set to Failed.
func (s *Set) Err() error { return s.err }

func (s *Set) Complete() bool { return s.state == StateComplete }

// Total returns the chunk count once a LAST chunk has been seen.
func (s *Set) Total() (uint64, bool) { return s.total, s.hasTotal }

// Len is the number of distinct chunks held.
func (s *Set) Len() int {
	if s.mode == frame.ModePlain {
		return len(s.plain)
	}
	return len(s.chunks)
}

// Add records one raw chunk string as scanned.
func (s *Set) Add(raw string) (Result, error) {
	if s.state == StateFailed {
		return Result{State: s.state}, s.err
	}
	if s.mode == frame.ModePlain {
		return s.addPlain(raw), nil
	}
	if _, dup := s.seen[raw]; dup {
		return Result{Duplicate: true, State: s.state}, nil
	}

	c, err := frame.Parse(s.variant, raw)
	if err != nil {
		s.logger.Debug().Err(err).Msg("reassembly: dropped unparsable chunk")
		return Result{State: s.state}, err
	}
	if c.ID >= MaxChunks {
		err := fmt.Errorf("%w: id %d beyond %d chunks", frame.ErrMalformedChunk, c.ID, MaxChunks)
		s.logger.Debug().Err(err).Msg("reassembly: dropped out-of-range chunk")
		return Result{State: s.state}, err
	}
	if err := s.check(c); err != nil {
		s.state = StateFailed
		s.err = err
		s.logger.Warn().Err(err).Uint64("id", c.ID).Msg("reassembly: failed")
		return Result{ID: c.ID, Last: c.Last, State: s.state}, err
	}

	s.seen[raw] = struct{}{}
	s.chunks[c.ID] = entry{data: c.Data, last: c.Last}
	if c.ID > s.maxID {
		s.maxID = c.ID
	}
	if c.Last {
		s.total = c.ID + 1
		s.hasTotal = true
	}
	if s.hasTotal && uint64(len(s.chunks)) == s.total {
		s.state = StateComplete
	}
	s.logger.Debug().
		Uint64("id", c.ID).
		Bool("last", c.Last).
		Int("held", len(s.chunks)).
		Str("state", s.state.String()).
		Msg("reassembly: chunk accepted")
	return Result{ID: c.ID, Last: c.Last, State: s.state}, nil
}

func (s *Set) check(c frame.Chunk) error {
	if prev, ok := s.chunks[c.ID]; ok {
		if prev.data != c.Data || prev.last != c.Last {
			return fmt.Errorf("%w: duplicate id %d, conflicting data", ErrReassembly, c.ID)
		}
	}
	if c.Last {
		if s.hasTotal && s.total != c.ID+1 {
			return fmt.Errorf("%w: second last chunk id %d, total already %d", ErrReassembly, c.ID, s.total)
		}
		if len(s.chunks) > 0 && s.maxID > c.ID {
			return fmt.Errorf("%w: last chunk id %d below held id %d", ErrReassembly, c.ID, s.maxID)
		}
		return nil
	}
	if s.hasTotal {
		if c.ID >= s.total {
			return fmt.Errorf("%w: id %d outside total %d", ErrReassembly, c.ID, s.total)
		}
		if c.ID == s.total-1 {
			return fmt.Errorf("%w: id %d marked more but total is %d", ErrReassembly, c.ID, s.total)
		}
	}
	return nil
}

func (s *Set) addPlain(raw string) Result {
	if len(s.plain) > 0 && raw == s.lastRaw {
		return Result{Duplicate: true, State: s.state}
	}
	s.plain = append(s.plain, raw)
	s.lastRaw = raw
	return Result{ID: uint64(len(s.plain) - 1), State: s.state}
}

// Missing lists ids not yet held: below the total when known, otherwise
// below the highest id seen.
func (s *Set) Missing() []uint64 {
	return s.missing(0)
}

// MissingCount is len(Missing()) without building the list.
func (s *Set) MissingCount() uint64 {
	limit, ok := s.limit()
	if !ok {
		return 0
	}
	return limit - uint64(len(s.chunks))
}

func (s *Set) limit() (uint64, bool) {
	if s.mode == frame.ModePlain || len(s.chunks) == 0 && !s.hasTotal {
		return 0, false
	}
	if s.hasTotal {
		return s.total, true
	}
	return s.maxID + 1, true
}

// missing returns up to n missing ids in order; n <= 0 means all.
func (s *Set) missing(n int) []uint64 {
	limit, ok := s.limit()
	if !ok {
		return nil
	}
	var out []uint64
	for id := uint64(0); id < limit; id++ {
		if _, ok := s.chunks[id]; !ok {
			out = append(out, id)
			if n > 0 && len(out) == n {
				break
			}
		}
	}
	return out
}

// Assemble concatenates data in id order. Indexed sets must be complete;
// plain sets join whatever arrived, since plain chunks carry no count.
func (s *Set) Assemble() (string, error) {
	if s.state == StateFailed {
		return "", s.err
	}
	if s.mode == frame.ModePlain {
		if len(s.plain) == 0 {
			return "", fmt.Errorf("%w: no chunks observed", ErrIncomplete)
		}
		return strings.Join(s.plain, ""), nil
	}
	if !s.Complete() {
		return "", s.incompleteError()
	}
	ids := make([]uint64, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(s.chunks[id].data)
	}
	return sb.String(), nil
}

func (s *Set) incompleteError() error {
	if !s.hasTotal {
		return fmt.Errorf("%w: last chunk not observed (%d held)", ErrIncomplete, len(s.chunks))
	}
	count := s.MissingCount()
	shown := s.missing(missingShown)
	parts := make([]string, 0, len(shown))
	for _, id := range shown {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	suffix := ""
	if count > uint64(len(shown)) {
		suffix = fmt.Sprintf(" (+%d more)", count-uint64(len(shown)))
	}
	return fmt.Errorf("%w: %d of %d chunks missing: %s%s", ErrIncomplete, count, s.total, strings.Join(parts, ","), suffix)
}
