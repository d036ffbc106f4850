package protocol

import "fmt"

const (
	alphanumeric45Symbols = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"
	base32Symbols         = "0123456789ABCDEFGHIJKLMNOPQRSTUV"
)

// Alphabet is an ordered set of unique printable ASCII symbols. The position
// of a symbol is its digit value, so encoder and decoder must share the same
// ordering, not just the same set.
type Alphabet struct {
	symbols string
	index   [256]int16
}

// NewAlphabet builds an immutable alphabet from symbols in digit order.
func NewAlphabet(symbols string) (*Alphabet, error) {
	if len(symbols) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 symbols, got %d", ErrInvalidAlphabet, len(symbols))
	}
	a := &Alphabet{symbols: symbols}
	for i := range a.index {
		a.index[i] = -1
	}
	for i := 0; i < len(symbols); i++ {
		c := symbols[i]
		if c < 0x20 || c > 0x7e {
			return nil, fmt.Errorf("%w: non-printable symbol 0x%02x at %d", ErrInvalidAlphabet, c, i)
		}
		if a.index[c] >= 0 {
			return nil, fmt.Errorf("%w: duplicate symbol %q at %d", ErrInvalidAlphabet, c, i)
		}
		a.index[c] = int16(i)
	}
	return a, nil
}

func mustAlphabet(symbols string) *Alphabet {
	a, err := NewAlphabet(symbols)
	if err != nil {
		panic(err)
	}
	return a
}

var (
	alphanumeric45 = mustAlphabet(alphanumeric45Symbols)
	base32         = mustAlphabet(base32Symbols)
)

// Alphanumeric45 is the full QR alphanumeric character set in QR order.
func Alphanumeric45() *Alphabet { return alphanumeric45 }

// Base32 is the first 32 symbols of the QR alphanumeric set.
func Base32() *Alphabet { return base32 }

// N returns the number of symbols, which is the encoding base.
func (a *Alphabet) N() int { return len(a.symbols) }

// Symbols returns the symbols in digit order.
func (a *Alphabet) Symbols() string { return a.symbols }

func (a *Alphabet) Contains(c byte) bool { return a.index[c] >= 0 }

// Index returns the digit value of c.
func (a *Alphabet) Index(c byte) (int, error) {
	i := a.index[c]
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSymbol, c)
	}
	return int(i), nil
}

// Symbol returns the symbol for digit value i, valid for 0 <= i < N.
func (a *Alphabet) Symbol(i int) (byte, error) {
	if i < 0 || i >= len(a.symbols) {
		return 0, fmt.Errorf("%w: digit %d out of range [0,%d)", ErrInvalidSymbol, i, len(a.symbols))
	}
	return a.symbols[i], nil
}
