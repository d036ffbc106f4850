package protocol

import (
	"fmt"
	"math/big"
)

// bigDigits is the digit set math/big uses for Text/SetString up to
// big.MaxBase.
const bigDigits = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// BigIntCodec treats the whole byte string as one big-endian integer and
// writes it in base N, least-significant digit first.
//
// Leading zero bytes do not survive a round trip, and an all-zero input
// encodes to the empty string. Callers feed it compressed payloads, which
// always start with a non-zero magic byte.
type BigIntCodec struct {
	alpha *Alphabet
	base  int
	// toBig maps alphabet digit value to math/big digit, fromBig the reverse.
	toBig   [256]byte
	fromBig [256]int16
}

func NewBigIntCodec(a *Alphabet) (*BigIntCodec, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil alphabet", ErrInvalidAlphabet)
	}
	if a.N() > big.MaxBase {
		return nil, fmt.Errorf("%w: base %d exceeds %d", ErrInvalidAlphabet, a.N(), big.MaxBase)
	}
	c := &BigIntCodec{alpha: a, base: a.N()}
	for i := range c.fromBig {
		c.fromBig[i] = -1
	}
	for d := 0; d < a.N(); d++ {
		c.toBig[d] = bigDigits[d]
		c.fromBig[bigDigits[d]] = int16(d)
	}
	return c, nil
}

func (c *BigIntCodec) Alphabet() *Alphabet { return c.alpha }

// Encode converts data to base-N digits. math/big does the radix conversion
// (subquadratic for large inputs); its most-significant-first digits are
// then reversed and remapped onto the alphabet.
func (c *BigIntCodec) Encode(data []byte) string {
	v := new(big.Int).SetBytes(data)
	if v.Sign() == 0 {
		return ""
	}
	text := v.Text(c.base)
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		d := c.fromBig[text[len(text)-1-i]]
		out[i] = c.alpha.symbols[d]
	}
	return string(out)
}

// Decode folds the digits back into an integer and returns its minimal
// big-endian bytes, i.e. the bit string left-padded to a multiple of 8.
func (c *BigIntCodec) Decode(encoded string) ([]byte, error) {
	encoded = StripLineBreaks(encoded)
	if encoded == "" {
		return []byte{}, nil
	}
	digits := make([]byte, len(encoded))
	for i := 0; i < len(encoded); i++ {
		d, err := c.alpha.Index(encoded[len(encoded)-1-i])
		if err != nil {
			return nil, fmt.Errorf("%w at offset %d", err, len(encoded)-1-i)
		}
		digits[i] = c.toBig[d]
	}
	v, ok := new(big.Int).SetString(string(digits), c.base)
	if !ok {
		return nil, fmt.Errorf("%w: base-%d conversion rejected digits", ErrDecode, c.base)
	}
	return v.Bytes(), nil
}

func (c *BigIntCodec) EncodeUint(v uint64) string { return encodeUint(c.alpha, v) }

func (c *BigIntCodec) DecodeUint(encoded string) (uint64, error) {
	return decodeUint(c.alpha, encoded)
}
