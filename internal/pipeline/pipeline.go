// Package pipeline wires the codec layers together: compress, base encode
// and frame on the way out; reassemble, base decode and decompress on the
// way back.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/qrlink/internal/compress"
	"github.com/danmuck/qrlink/internal/observability"
	"github.com/danmuck/qrlink/internal/protocol"
	"github.com/danmuck/qrlink/internal/protocol/frame"
	"github.com/danmuck/qrlink/internal/protocol/reassembly"
	"github.com/danmuck/qrlink/internal/symbol"
	"github.com/rs/zerolog"
)

var ErrNoSymbol = errors.New("pipeline: no readable symbol")

type Options struct {
	Variant    string
	Level      string
	Mode       string
	Compressor string
	Workers    int
	// Renderer and Scanner default to the QR implementations.
	Renderer symbol.Renderer
	Scanner  symbol.Scanner
	Logger   zerolog.Logger
}

type Pipeline struct {
	Variant    *protocol.Variant
	Level      protocol.Level
	Mode       frame.Mode
	Compressor compress.Compressor
	Workers    int
	Renderer   symbol.Renderer
	Scanner    symbol.Scanner
	Logger     zerolog.Logger
}

func New(opts Options) (*Pipeline, error) {
	v, err := protocol.LookupVariant(opts.Variant)
	if err != nil {
		return nil, err
	}
	level, err := protocol.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	mode, err := frame.ParseMode(opts.Mode, v)
	if err != nil {
		return nil, err
	}
	c, err := compress.Lookup(opts.Compressor)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Variant:    v,
		Level:      level,
		Mode:       mode,
		Compressor: c,
		Workers:    max(opts.Workers, 1),
		Renderer:   opts.Renderer,
		Scanner:    opts.Scanner,
		Logger:     opts.Logger,
	}
	if p.Renderer == nil {
		p.Renderer = symbol.NewQRRenderer(level)
	}
	if p.Scanner == nil {
		p.Scanner = symbol.NewQRScanner()
	}
	return p, nil
}

func (p *Pipeline) Framer() (*frame.Framer, error) {
	return frame.ForLevel(p.Variant, p.Level, p.Mode)
}

// NewSet starts a reassembly for this pipeline's variant and mode.
func (p *Pipeline) NewSet() *reassembly.Set {
	return reassembly.New(p.Variant, p.Mode, reassembly.WithLogger(p.Logger))
}

// EncodePayload compresses data and writes it in the variant's alphabet.
func (p *Pipeline) EncodePayload(data []byte) (string, error) {
	packed, err := p.Compressor.Compress(data)
	if err != nil {
		return "", err
	}
	if _, big := p.Variant.Codec.(*protocol.BigIntCodec); big && len(packed) > 0 && packed[0] == 0 {
		return "", fmt.Errorf("%w: compressor %s", protocol.ErrLeadingZero, p.Compressor.Name())
	}
	encoded := p.Variant.Codec.Encode(packed)
	p.Logger.Debug().
		Int("input", len(data)).
		Int("compressed", len(packed)).
		Int("encoded", len(encoded)).
		Str("variant", p.Variant.Name).
		Msg("pipeline: payload encoded")
	return encoded, nil
}

// DecodePayload reverses EncodePayload. Line breaks are ignored.
func (p *Pipeline) DecodePayload(encoded string) ([]byte, error) {
	packed, err := p.Variant.Codec.Decode(protocol.StripLineBreaks(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrDecode, err)
	}
	data, err := p.Compressor.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrDecode, err)
	}
	return data, nil
}

func (p *Pipeline) EncodeChunks(data []byte) ([]string, error) {
	encoded, err := p.EncodePayload(data)
	if err != nil {
		return nil, err
	}
	f, err := p.Framer()
	if err != nil {
		return nil, err
	}
	chunks, err := f.Split(encoded)
	if err != nil {
		return nil, err
	}
	observability.RecordChunksEncoded(p.Variant.Name, p.Mode.String(), len(chunks))
	p.Logger.Info().
		Int("chunks", len(chunks)).
		Int("capacity", f.Capacity()).
		Str("mode", p.Mode.String()).
		Msg("pipeline: payload framed")
	return chunks, nil
}

// DecodeChunks decodes a complete chunk list. Plain chunks are joined in
// the order given; indexed chunks may come in any order, with repeats.
func (p *Pipeline) DecodeChunks(chunks []string) ([]byte, error) {
	var encoded string
	if p.Mode == frame.ModePlain {
		if len(chunks) == 0 {
			observability.RecordReassembly(observability.OutcomeIncomplete)
			return nil, fmt.Errorf("%w: no chunks", reassembly.ErrIncomplete)
		}
		encoded = strings.Join(chunks, "")
	} else {
		set := p.NewSet()
		for i, raw := range chunks {
			if _, err := set.Add(raw); err != nil {
				if errors.Is(err, reassembly.ErrReassembly) {
					observability.RecordReassembly(observability.OutcomeFailed)
					return nil, err
				}
				return nil, fmt.Errorf("chunk %d: %w", i, err)
			}
		}
		out, err := set.Assemble()
		if err != nil {
			observability.RecordReassembly(observability.OutcomeIncomplete)
			return nil, err
		}
		encoded = out
	}
	observability.RecordReassembly(observability.OutcomeComplete)
	return p.DecodePayload(encoded)
}
