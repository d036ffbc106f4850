package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/danmuck/qrlink/internal/observability"
	"github.com/danmuck/qrlink/internal/protocol/frame"
	"github.com/danmuck/qrlink/internal/protocol/reassembly"
	"github.com/danmuck/qrlink/internal/symbol"
	"github.com/rs/zerolog"
)

const (
	DefaultScanRate     = 10
	DefaultPollInterval = 25 * time.Millisecond
)

// Journal persists accepted chunks so an interrupted scan can resume.
type Journal interface {
	Record(raw string) error
	Replay(fn func(raw string) error) error
}

// Frame is what the loop reports to an Observer after each iteration.
type Frame struct {
	Index   int
	Image   image.Image
	Action  Action
	Payload string
	Found   bool
	Result  reassembly.Result
	State   State
}

type Observer func(Frame)

type Loop struct {
	Source  FrameSource
	Scanner symbol.Scanner
	Set     *reassembly.Set
	Control Control
	// ScanRate is the number of frames per scan after a symbol is found.
	ScanRate int
	// PollInterval is the wait between control polls while paused.
	PollInterval time.Duration
	Journal      Journal
	Observer     Observer
	Logger       zerolog.Logger
}

// Run reads frames until the set completes, the source is exhausted, the
// control asks to quit, or ctx is done, then assembles the payload.
// Stopping before completion returns reassembly.ErrIncomplete; plain sets
// have no completion marker and assemble only when the source runs out.
func (l *Loop) Run(ctx context.Context) (string, error) {
	if l.Source == nil || l.Scanner == nil || l.Set == nil {
		return "", errors.New("scan: loop needs a source, scanner and set")
	}
	control := l.Control
	if control == nil {
		control = NoControl{}
	}
	rate := l.ScanRate
	if rate <= 0 {
		rate = DefaultScanRate
	}
	poll := l.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	if err := l.replay(); err != nil {
		return "", err
	}
	if l.Set.Complete() {
		return l.finish()
	}

	var (
		state State
		last  string
		index int
	)
	for {
		switch control.Poll() {
		case KeyQuit:
			l.Logger.Info().Int("frames", index).Msg("scan: quit requested")
			return "", l.stopped(errors.New("quit requested"))
		case KeyPause:
			state, _ = Step(state, EventTogglePause, rate)
			l.Logger.Info().Bool("paused", state.Paused).Msg("scan: pause toggled")
		}
		if err := ctx.Err(); err != nil {
			return "", l.stopped(err)
		}
		if state.Paused {
			select {
			case <-ctx.Done():
				return "", l.stopped(ctx.Err())
			case <-time.After(poll):
			}
			continue
		}

		img, err := l.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			l.Logger.Debug().Int("frames", index).Msg("scan: source exhausted")
			if l.Set.Mode() == frame.ModePlain {
				return l.finish()
			}
			return "", l.stopped(errors.New("frame source exhausted"))
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", l.stopped(ctx.Err())
			}
			return "", fmt.Errorf("%w: frame %d: %w", ErrFrameSource, index, err)
		}

		var action Action
		state, action = Step(state, EventFrame, rate)
		fr := Frame{Index: index, Image: img, Action: action}
		index++

		if action == ActionSkip {
			observability.RecordScanFrame(observability.ScanSkipped)
			fr.State = state
			l.observe(fr)
			continue
		}

		payload, ok, err := l.Scanner.Scan(img)
		if err != nil {
			return "", fmt.Errorf("scan: frame %d: %w", fr.Index, err)
		}
		if !ok {
			observability.RecordScanFrame(observability.ScanEmpty)
			fr.State = state
			l.observe(fr)
			continue
		}
		state, _ = Step(state, EventFound, rate)
		fr.Payload, fr.Found, fr.State = payload, true, state

		if payload == last {
			observability.RecordScanFrame(observability.ScanRepeat)
			l.observe(fr)
			continue
		}
		last = payload

		res, err := l.Set.Add(payload)
		fr.Result = res
		switch {
		case errors.Is(err, reassembly.ErrReassembly):
			observability.RecordScanFrame(observability.ScanRejected)
			observability.RecordReassembly(observability.OutcomeFailed)
			l.observe(fr)
			return "", err
		case err != nil:
			observability.RecordScanFrame(observability.ScanRejected)
			l.Logger.Debug().Err(err).Int("frame", fr.Index).Msg("scan: ignored unreadable chunk")
		case res.Duplicate:
			observability.RecordScanFrame(observability.ScanDuplicate)
		default:
			observability.RecordScanFrame(observability.ScanAccepted)
			if l.Journal != nil {
				if err := l.Journal.Record(payload); err != nil {
					return "", fmt.Errorf("scan: journal: %w", err)
				}
			}
			l.Logger.Info().
				Int("frame", fr.Index).
				Uint64("id", res.ID).
				Bool("last", res.Last).
				Int("held", l.Set.Len()).
				Msg("scan: chunk accepted")
		}
		l.observe(fr)

		if l.Set.Complete() {
			return l.finish()
		}
	}
}

func (l *Loop) replay() error {
	if l.Journal == nil {
		return nil
	}
	n := 0
	err := l.Journal.Replay(func(raw string) error {
		_, err := l.Set.Add(raw)
		if errors.Is(err, reassembly.ErrReassembly) {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		observability.RecordReassembly(observability.OutcomeFailed)
		return fmt.Errorf("scan: journal replay: %w", err)
	}
	if n > 0 {
		l.Logger.Info().Int("chunks", n).Msg("scan: journal replayed")
	}
	return nil
}

func (l *Loop) finish() (string, error) {
	out, err := l.Set.Assemble()
	if err != nil {
		if errors.Is(err, reassembly.ErrIncomplete) {
			observability.RecordReassembly(observability.OutcomeIncomplete)
		} else {
			observability.RecordReassembly(observability.OutcomeFailed)
		}
		return "", err
	}
	observability.RecordReassembly(observability.OutcomeComplete)
	return out, nil
}

func (l *Loop) stopped(cause error) error {
	observability.RecordReassembly(observability.OutcomeIncomplete)
	if _, err := l.Set.Assemble(); err != nil && !errors.Is(err, reassembly.ErrIncomplete) {
		return err
	}
	return fmt.Errorf("%w: %w (%d held, %d missing)", reassembly.ErrIncomplete, cause, l.Set.Len(), l.Set.MissingCount())
}

func (l *Loop) observe(fr Frame) {
	if l.Observer != nil {
		l.Observer(fr)
	}
}
