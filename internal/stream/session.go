package stream

// Sentinel is the payload that marks the end of a stream. It is never displayed.
const Sentinel = "[DONE]"

// State is the lifecycle state of a stream session.
type State int

// EventKind identifies what happened to a session.
type EventKind int

// EffectKind identifies a side effect requested by a transition.
type EffectKind int

const (
	// StateIdle is the state before the request is issued.
	StateIdle State = iota
	// StateConnecting means the request is issued and no fragment arrived yet.
	StateConnecting
	// StateStreaming means at least one fragment was merged into the transcript.
	StateStreaming
	// StateCompleted means the sentinel was received.
	StateCompleted
	// StateFailed means the transport failed before the sentinel.
	StateFailed
)

const (
	// EventStart is emitted when the request is issued.
	EventStart EventKind = iota
	// EventData carries one payload received from the stream, either a fragment or the sentinel.
	EventData
	// EventFail reports a transport failure.
	EventFail
)

const (
	// EffectSetLoading sets the loading indicator to Effect.Loading.
	EffectSetLoading EffectKind = iota
	// EffectMergeAssistant replaces or appends the open assistant message with Effect.Content.
	EffectMergeAssistant
	// EffectAppendError appends the fallback assistant message.
	EffectAppendError
	// EffectClose closes the stream channel.
	EffectClose
)

// Session is the ephemeral state of one exchange: its lifecycle state and the raw, unformatted
// text received so far.
type Session struct {
	State  State
	Buffer string
}

// Event is an input of the session state machine.
type Event struct {
	Kind EventKind
	Data string
	Err  error
}

// Effect describes a side effect to apply after a transition.
type Effect struct {
	Kind    EffectKind
	Loading bool
	Content string
}

// Start returns the event emitted when the request is issued.
func Start() Event { return Event{Kind: EventStart} }

// Data returns the event for one received payload.
func Data(payload string) Event { return Event{Kind: EventData, Data: payload} }

// Fail returns the event for a transport failure.
func Fail(err error) Event { return Event{Kind: EventFail, Err: err} }

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Step computes the transition of session s on event ev. It is pure: the returned effects
// describe everything the caller has to perform. Terminal sessions ignore every event, and events
// that are invalid for the current state leave it unchanged.
func Step(s Session, ev Event) (Session, []Effect) {
	if s.State.Terminal() {
		return s, nil
	}

	switch ev.Kind {
	case EventStart:
		if s.State != StateIdle {
			return s, nil
		}
		s.State = StateConnecting
		return s, []Effect{{Kind: EffectSetLoading, Loading: true}}

	case EventData:
		if s.State == StateIdle {
			return s, nil
		}
		if ev.Data == Sentinel {
			s.State = StateCompleted
			return s, []Effect{
				{Kind: EffectClose},
				{Kind: EffectSetLoading, Loading: false},
			}
		}
		s.State = StateStreaming
		s.Buffer += ev.Data
		return s, []Effect{{Kind: EffectMergeAssistant, Content: Format(s.Buffer)}}

	case EventFail:
		if s.State == StateIdle {
			return s, nil
		}
		s.State = StateFailed
		return s, []Effect{
			{Kind: EffectClose},
			{Kind: EffectSetLoading, Loading: false},
			{Kind: EffectAppendError},
		}
	}

	return s, nil
}
