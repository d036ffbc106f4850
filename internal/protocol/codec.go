package protocol

import (
	"fmt"
	"strings"
)

// Codec converts byte strings and chunk ids to and from alphabet symbols.
type Codec interface {
	Alphabet() *Alphabet
	Encode(data []byte) string
	Decode(encoded string) ([]byte, error)
	EncodeUint(v uint64) string
	DecodeUint(encoded string) (uint64, error)
}

// StripLineBreaks removes CR and LF, which wrapped text files carry but the
// alphabets never contain.
func StripLineBreaks(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}

// encodeUint writes v as base-N digits, least-significant first. Zero is
// the empty string.
func encodeUint(a *Alphabet, v uint64) string {
	if v == 0 {
		return ""
	}
	n := uint64(a.N())
	var buf [64]byte
	i := 0
	for v > 0 {
		buf[i] = a.symbols[v%n]
		v /= n
		i++
	}
	return string(buf[:i])
}

func decodeUint(a *Alphabet, s string) (uint64, error) {
	n := uint64(a.N())
	var v uint64
	for i := len(s) - 1; i >= 0; i-- {
		d, err := a.Index(s[i])
		if err != nil {
			return 0, err
		}
		if v > (^uint64(0)-uint64(d))/n {
			return 0, fmt.Errorf("%w: integer %q overflows uint64", ErrDecode, s)
		}
		v = v*n + uint64(d)
	}
	return v, nil
}
