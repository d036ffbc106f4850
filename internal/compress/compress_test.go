package compress

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripAllCompressors(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("AAAAAAAAAA"),
		bytes.Repeat([]byte("qrlink "), 500),
		{0, 0, 0, 1, 2, 3},
	}
	for _, name := range Names() {
		c, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		for _, in := range inputs {
			packed, err := c.Compress(in)
			if err != nil {
				t.Fatalf("%s compress: %v", name, err)
			}
			if len(packed) == 0 || packed[0] == 0 {
				t.Fatalf("%s: expected non-zero leading byte, got % x", name, packed)
			}
			out, err := c.Decompress(packed)
			if err != nil {
				t.Fatalf("%s decompress: %v", name, err)
			}
			if !bytes.Equal(out, in) {
				t.Fatalf("%s: round trip mismatch", name)
			}
		}
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	for _, name := range Names() {
		c, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		packed, _ := c.Compress(bytes.Repeat([]byte("payload"), 50))
		for _, bad := range [][]byte{{}, []byte("not compressed at all"), packed[:len(packed)/2]} {
			if _, err := c.Decompress(bad); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("%s: expected ErrCorrupt for %d bytes, got %v", name, len(bad), err)
			}
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("bz2"); !errors.Is(err, ErrUnknownCompress) {
		t.Fatalf("expected ErrUnknownCompress, got %v", err)
	}
	c, err := Lookup("")
	if err != nil || c.Name() != NameZstd {
		t.Fatalf("expected zstd default, got %v, %v", c, err)
	}
}

func TestZstdEmptyInputProducesFrame(t *testing.T) {
	z, err := NewZstd()
	if err != nil {
		t.Fatalf("new zstd: %v", err)
	}
	packed, err := z.Compress(nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(packed) == 0 {
		t.Fatalf("expected a zstd frame for empty input")
	}
	out, err := z.Decompress(packed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d bytes", len(out))
	}
}
