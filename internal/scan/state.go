package scan

import "fmt"

// State is either paused or scanning with a frame countdown. The loop owns
// one value and replaces it with whatever Step returns.
type State struct {
	Paused    bool
	Countdown int
}

type Event int

const (
	// EventFrame reports that a frame was read.
	EventFrame Event = iota
	// EventFound reports that a scan produced a payload.
	EventFound
	EventTogglePause
)

type Action int

const (
	ActionNone Action = iota
	ActionScan
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionScan:
		return "scan"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Step advances the scan state. After a successful scan the next rate-1
// frames are skipped; frames without a symbol are scanned back to back.
func Step(s State, ev Event, rate int) (State, Action) {
	switch ev {
	case EventTogglePause:
		s.Paused = !s.Paused
		return s, ActionNone
	case EventFound:
		s.Countdown = max(rate-1, 0)
		return s, ActionNone
	case EventFrame:
		if s.Paused {
			return s, ActionNone
		}
		if s.Countdown <= 0 {
			return s, ActionScan
		}
		s.Countdown--
		return s, ActionSkip
	default:
		return s, ActionNone
	}
}
