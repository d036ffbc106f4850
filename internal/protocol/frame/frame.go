package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/qrlink/internal/protocol"
)

var (
	ErrCapacityExceeded = errors.New("frame: capacity exceeded")
	ErrInvalidCapacity  = errors.New("frame: capacity must be positive")
	ErrMalformedChunk   = errors.New("frame: malformed chunk")
	ErrUnknownMode      = errors.New("frame: unknown mode")
)

// Mode selects how an encoded payload is cut into chunks.
type Mode int

const (
	// ModePlain slices the payload into fixed-size pieces with no header.
	ModePlain Mode = iota
	// ModeIndexed prefixes every piece with its id and a more/last marker.
	ModeIndexed
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeIndexed:
		return "indexed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a config string to a Mode. Empty selects the variant default.
func ParseMode(raw string, v *protocol.Variant) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if v != nil && v.Indexed {
			return ModeIndexed, nil
		}
		return ModePlain, nil
	case "plain":
		return ModePlain, nil
	case "indexed":
		return ModeIndexed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Chunk is one parsed indexed chunk.
type Chunk struct {
	ID   uint64
	Data string
	Last bool
}

// Framer cuts encoded payloads into chunks no longer than Capacity.
type Framer struct {
	variant  *protocol.Variant
	capacity int
	mode     Mode
}

func New(v *protocol.Variant, capacity int, mode Mode) (*Framer, error) {
	if v == nil {
		return nil, fmt.Errorf("frame: nil variant")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if mode != ModePlain && mode != ModeIndexed {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	return &Framer{variant: v, capacity: capacity, mode: mode}, nil
}

// ForLevel builds a framer using the variant's capacity at level.
func ForLevel(v *protocol.Variant, level protocol.Level, mode Mode) (*Framer, error) {
	if v == nil {
		return nil, fmt.Errorf("frame: nil variant")
	}
	c, err := v.Capacity(level)
	if err != nil {
		return nil, err
	}
	return New(v, c, mode)
}

func (f *Framer) Capacity() int { return f.capacity }

func (f *Framer) Mode() Mode { return f.mode }

func (f *Framer) Variant() *protocol.Variant { return f.variant }

// Split cuts payload into chunks. Every returned chunk, prefix included, is
// at most Capacity long.
func (f *Framer) Split(payload string) ([]string, error) {
	if f.mode == ModePlain {
		return f.splitPlain(payload), nil
	}
	return f.splitIndexed(payload)
}

func (f *Framer) splitPlain(payload string) []string {
	chunks := make([]string, 0, (len(payload)+f.capacity-1)/f.capacity)
	for i := 0; i < len(payload); i += f.capacity {
		end := min(i+f.capacity, len(payload))
		chunks = append(chunks, payload[i:end])
	}
	return chunks
}

// splitIndexed cuts greedily in id order. Both separators are one symbol,
// so a chunk is the last one exactly when the remainder fits in it. An empty
// payload still yields one LAST chunk so the receiver can complete.
func (f *Framer) splitIndexed(payload string) ([]string, error) {
	var chunks []string
	pos := 0
	for id := uint64(0); ; id++ {
		prefix := f.variant.Codec.EncodeUint(id)
		room := f.capacity - len(prefix) - 1
		if room <= 0 {
			return nil, fmt.Errorf("%w: id %d needs %d of %d symbols", ErrCapacityExceeded, id, len(prefix)+1, f.capacity)
		}
		end := pos + room
		if end >= len(payload) {
			chunks = append(chunks, Format(f.variant, Chunk{ID: id, Data: payload[pos:], Last: true}))
			return chunks, nil
		}
		chunks = append(chunks, Format(f.variant, Chunk{ID: id, Data: payload[pos:end]}))
		pos = end
	}
}

// Format renders c as id + separator + data.
func Format(v *protocol.Variant, c Chunk) string {
	sep := v.More
	if c.Last {
		sep = v.Last
	}
	prefix := v.Codec.EncodeUint(c.ID)
	var sb strings.Builder
	sb.Grow(len(prefix) + 1 + len(c.Data))
	sb.WriteString(prefix)
	sb.WriteByte(sep)
	sb.WriteString(c.Data)
	return sb.String()
}

// Parse splits raw at the first separator and decodes the id prefix.
func Parse(v *protocol.Variant, raw string) (Chunk, error) {
	seps := string([]byte{v.More, v.Last})
	i := strings.IndexAny(raw, seps)
	if i < 0 {
		return Chunk{}, fmt.Errorf("%w: no separator", ErrMalformedChunk)
	}
	data := raw[i+1:]
	if strings.ContainsAny(data, seps) {
		return Chunk{}, fmt.Errorf("%w: separator inside data", ErrMalformedChunk)
	}
	id, err := v.Codec.DecodeUint(raw[:i])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: id prefix %q: %w", ErrMalformedChunk, raw[:i], err)
	}
	return Chunk{ID: id, Data: data, Last: raw[i] == v.Last}, nil
}
