package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// Level is a QR error-correction level.
type Level int

const (
	LevelL Level = iota
	LevelM
	LevelQ
	LevelH
)

func (l Level) String() string {
	switch l {
	case LevelL:
		return "L"
	case LevelM:
		return "M"
	case LevelQ:
		return "Q"
	case LevelH:
		return "H"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func ParseLevel(raw string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "L", "LOW":
		return LevelL, nil
	case "M", "MEDIUM":
		return LevelM, nil
	case "Q", "QUARTILE", "":
		return LevelQ, nil
	case "H", "HIGH":
		return LevelH, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
	}
}

const (
	VariantBase45 = "base45"
	VariantBase32 = "base32"
)

// Variant pins one alphabet, one codec, one capacity table and one pair of
// separators. Variants are not interoperable; a deployment picks one.
type Variant struct {
	Name     string
	Alphabet *Alphabet
	Codec    Codec
	// More and Last mark indexed chunks; neither is ever an alphabet symbol.
	More byte
	Last byte
	// Indexed is the framing used when the caller does not choose one.
	Indexed    bool
	capacities map[Level]int
}

// NewVariant validates that the separators stay outside the alphabet and
// that every level has a capacity.
func NewVariant(name string, codec Codec, more, last byte, indexed bool, capacities map[Level]int) (*Variant, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: variant %s has no codec", ErrInvalidAlphabet, name)
	}
	a := codec.Alphabet()
	if more == last {
		return nil, fmt.Errorf("%w: variant %s separators must differ", ErrInvalidAlphabet, name)
	}
	if a.Contains(more) || a.Contains(last) {
		return nil, fmt.Errorf("%w: variant %s separator collides with alphabet", ErrInvalidAlphabet, name)
	}
	caps := make(map[Level]int, 4)
	for _, lvl := range []Level{LevelL, LevelM, LevelQ, LevelH} {
		c, ok := capacities[lvl]
		if !ok || c <= 0 {
			return nil, fmt.Errorf("%w: variant %s missing capacity for level %s", ErrUnknownLevel, name, lvl)
		}
		caps[lvl] = c
	}
	return &Variant{
		Name:       name,
		Alphabet:   a,
		Codec:      codec,
		More:       more,
		Last:       last,
		Indexed:    indexed,
		capacities: caps,
	}, nil
}

// Capacity returns the maximum chunk length, prefix included, at level.
func (v *Variant) Capacity(level Level) (int, error) {
	c, ok := v.capacities[level]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	return c, nil
}

var variants = map[string]*Variant{
	VariantBase45: mustVariant(func() (*Variant, error) {
		codec, err := NewBigIntCodec(alphanumeric45)
		if err != nil {
			return nil, err
		}
		return NewVariant(VariantBase45, codec, '#', '!', false, map[Level]int{
			LevelL: 1852,
			LevelM: 1032,
			LevelQ: 644,
			LevelH: 490,
		})
	}),
	VariantBase32: mustVariant(func() (*Variant, error) {
		codec, err := NewBitGroupCodec(base32)
		if err != nil {
			return nil, err
		}
		return NewVariant(VariantBase32, codec, '-', '.', true, map[Level]int{
			LevelL: 4296,
			LevelM: 3391,
			LevelQ: 2420,
			LevelH: 1852,
		})
	}),
}

func mustVariant(build func() (*Variant, error)) *Variant {
	v, err := build()
	if err != nil {
		panic(err)
	}
	return v
}

func LookupVariant(name string) (*Variant, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = VariantBase45
	}
	v, ok := variants[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// VariantNames lists the registered variants in sorted order.
func VariantNames() []string {
	out := make([]string, 0, len(variants))
	for name := range variants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
