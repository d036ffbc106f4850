package protocol

import (
	"fmt"
	"math/bits"
)

// BitGroupCodec slices the bit stream into fixed log2(N)-bit groups and maps
// each group straight through the alphabet. The stream is zero-padded on the
// most-significant side, so decoding drops leading bits down to a multiple
// of 8. Only power-of-two alphabets qualify.
type BitGroupCodec struct {
	alpha *Alphabet
	width uint
}

func NewBitGroupCodec(a *Alphabet) (*BitGroupCodec, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil alphabet", ErrInvalidAlphabet)
	}
	n := a.N()
	if n&(n-1) != 0 || n > 64 {
		return nil, fmt.Errorf("%w: bit-group codec needs a power-of-two base <= 64, got %d", ErrInvalidAlphabet, n)
	}
	return &BitGroupCodec{alpha: a, width: uint(bits.TrailingZeros(uint(n)))}, nil
}

func (c *BitGroupCodec) Alphabet() *Alphabet { return c.alpha }

// Width is the number of bits carried by one symbol.
func (c *BitGroupCodec) Width() int { return int(c.width) }

func (c *BitGroupCodec) Encode(data []byte) string {
	total := uint(len(data)) * 8
	pad := (c.width - total%c.width) % c.width
	out := make([]byte, 0, (total+pad)/c.width)
	mask := uint64(1)<<c.width - 1

	// The pad bits are zeros ahead of the first data bit.
	var acc uint64
	nbits := pad
	for _, b := range data {
		acc = acc<<8 | uint64(b)
		nbits += 8
		for nbits >= c.width {
			nbits -= c.width
			out = append(out, c.alpha.symbols[(acc>>nbits)&mask])
		}
		acc &= uint64(1)<<nbits - 1
	}
	return string(out)
}

func (c *BitGroupCodec) Decode(encoded string) ([]byte, error) {
	encoded = StripLineBreaks(encoded)
	total := uint(len(encoded)) * c.width
	skip := total % 8
	out := make([]byte, 0, total/8)

	var acc uint64
	var nbits uint
	for i := 0; i < len(encoded); i++ {
		d, err := c.alpha.Index(encoded[i])
		if err != nil {
			return nil, fmt.Errorf("%w at offset %d", err, i)
		}
		acc = acc<<c.width | uint64(d)
		nbits += c.width
		if skip > 0 {
			k := min(skip, nbits)
			nbits -= k
			skip -= k
			acc &= uint64(1)<<nbits - 1
		}
		for nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
			acc &= uint64(1)<<nbits - 1
		}
	}
	return out, nil
}

func (c *BitGroupCodec) EncodeUint(v uint64) string { return encodeUint(c.alpha, v) }

func (c *BitGroupCodec) DecodeUint(encoded string) (uint64, error) {
	return decodeUint(c.alpha, encoded)
}
