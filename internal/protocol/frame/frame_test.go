package frame

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/qrlink/internal/protocol"
)

func variant(t *testing.T, name string) *protocol.Variant {
	t.Helper()
	v, err := protocol.LookupVariant(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return v
}

func TestSplitPlainFixedSlices(t *testing.T) {
	f, err := New(variant(t, protocol.VariantBase45), 4, ModePlain)
	if err != nil {
		t.Fatalf("new framer: %v", err)
	}
	chunks, err := f.Split("ABCDEFGHIJ")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"ABCD", "EFGH", "IJ"}
	if strings.Join(chunks, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", chunks, want)
	}
	empty, _ := f.Split("")
	if len(empty) != 0 {
		t.Fatalf("expected no chunks for empty payload, got %v", empty)
	}
}

func TestSplitIndexedThreeChunksAtCapacityTen(t *testing.T) {
	v := variant(t, protocol.VariantBase45)
	f, err := New(v, 10, ModeIndexed)
	if err != nil {
		t.Fatalf("new framer: %v", err)
	}
	// ids 0,1,2 encode as "", "1", "2": room is 9, 8, 8 symbols.
	payload := strings.Repeat("ABCDEFGHIJ", 2) + "KLMNO"
	chunks, err := f.Split(payload)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	for i, c := range chunks {
		if len(c) > 10 {
			t.Fatalf("chunk %d exceeds capacity: %q", i, c)
		}
		parsed, err := Parse(v, c)
		if err != nil {
			t.Fatalf("parse chunk %d: %v", i, err)
		}
		if parsed.ID != uint64(i) {
			t.Fatalf("chunk %d parsed id %d", i, parsed.ID)
		}
		if wantLast := i == 2; parsed.Last != wantLast {
			t.Fatalf("chunk %d last=%v", i, parsed.Last)
		}
	}
	if chunks[0][0] != v.More || !strings.Contains(chunks[1], string(v.More)) || !strings.Contains(chunks[2], string(v.Last)) {
		t.Fatalf("unexpected separators: %v", chunks)
	}
}

func TestSplitIndexedRespectsCapacityForManyChunks(t *testing.T) {
	for _, name := range protocol.VariantNames() {
		v := variant(t, name)
		f, err := New(v, 7, ModeIndexed)
		if err != nil {
			t.Fatalf("new framer: %v", err)
		}
		payload := strings.Repeat("0123456789", 300)
		chunks, err := f.Split(payload)
		if err != nil {
			t.Fatalf("%s: split: %v", name, err)
		}
		var rebuilt strings.Builder
		for i, c := range chunks {
			if len(c) > 7 {
				t.Fatalf("%s: chunk %d too long: %q", name, i, c)
			}
			p, err := Parse(v, c)
			if err != nil {
				t.Fatalf("%s: parse %q: %v", name, c, err)
			}
			rebuilt.WriteString(p.Data)
		}
		if rebuilt.String() != payload {
			t.Fatalf("%s: data slices do not rebuild payload", name)
		}
	}
}

func TestSplitIndexedEmptyPayloadYieldsLastChunk(t *testing.T) {
	v := variant(t, protocol.VariantBase32)
	f, err := New(v, 10, ModeIndexed)
	if err != nil {
		t.Fatalf("new framer: %v", err)
	}
	chunks, err := f.Split("")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != string(v.Last) {
		t.Fatalf("expected single last marker, got %q", chunks)
	}
}

func TestSplitIndexedCapacityExceeded(t *testing.T) {
	f, err := New(variant(t, protocol.VariantBase45), 2, ModeIndexed)
	if err != nil {
		t.Fatalf("new framer: %v", err)
	}
	// id 0 leaves one symbol of room, id 1 needs both.
	_, err = f.Split("ABCDEF")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	v := variant(t, protocol.VariantBase45)
	cases := map[string]string{
		"no separator":   "ABCDEF",
		"bad id symbol":  "a#ABC",
		"separator data": "1#AB!C",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(v, raw); !errors.Is(err, ErrMalformedChunk) {
				t.Fatalf("expected ErrMalformedChunk, got %v", err)
			}
		})
	}
}

func TestNewRejectsBadCapacity(t *testing.T) {
	if _, err := New(variant(t, protocol.VariantBase45), 0, ModePlain); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestParseModeDefaultsToVariant(t *testing.T) {
	m, err := ParseMode("", variant(t, protocol.VariantBase32))
	if err != nil || m != ModeIndexed {
		t.Fatalf("expected indexed default for base32, got %v, %v", m, err)
	}
	m, err = ParseMode("", variant(t, protocol.VariantBase45))
	if err != nil || m != ModePlain {
		t.Fatalf("expected plain default for base45, got %v, %v", m, err)
	}
	if _, err := ParseMode("zigzag", nil); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}
