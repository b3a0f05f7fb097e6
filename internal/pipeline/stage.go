package pipeline

// Stage is the state of one call.
//
//	Idle → Segmenting → (Synthesizing → Decoding → Playing)* → Done | Failed
type Stage int

const (
	StageIdle Stage = iota
	StageSegmenting
	StageSynthesizing
	StageDecoding
	StagePlaying
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSegmenting:
		return "segmenting"
	case StageSynthesizing:
		return "synthesizing"
	case StageDecoding:
		return "decoding"
	case StagePlaying:
		return "playing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a call.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// Event is one state transition. Index is -1 for call-level transitions.
type Event struct {
	CallID string
	Stage  Stage
	Index  int
	Total  int
	Text   string
	Err    error
}

// Observer receives every transition of a call. With lookahead the
// synthesizing and playing transitions of different segments interleave.
type Observer func(Event)
