package xr

// EventKind discriminates session events.
type EventKind string

const (
	EventSessionEnd       EventKind = "session-end"
	EventVisibilityChange EventKind = "visibility-change"
	EventSelect           EventKind = "select"
	EventInputAdded       EventKind = "input-added"
	EventInputUpdated     EventKind = "input-updated"
	EventInputRemoved     EventKind = "input-removed"
)

// SelectKind distinguishes the primary select action from the squeeze action.
type SelectKind string

const (
	SelectPrimary SelectKind = "select"
	SelectSqueeze SelectKind = "squeeze"
)

// SelectPhase is the stage of a select gesture. SelectPhaseSelect marks the
// completed gesture and is delivered between start and end.
type SelectPhase string

const (
	SelectPhaseStart  SelectPhase = "start"
	SelectPhaseSelect SelectPhase = "select"
	SelectPhaseEnd    SelectPhase = "end"
)

// Event is a device-originated notification forwarded to the content side.
// Kind decides which of the remaining fields are populated. Ordering of
// events from one session is preserved; nothing is guaranteed across
// sessions.
type Event struct {
	Kind        EventKind    `json:"kind"`
	Visibility  Visibility   `json:"visibility,omitempty"`
	Input       *InputSource `json:"input,omitempty"`
	InputID     InputID      `json:"inputId,omitempty"`
	SelectKind  SelectKind   `json:"selectKind,omitempty"`
	SelectPhase SelectPhase  `json:"selectPhase,omitempty"`
	Frame       *Frame       `json:"frame,omitempty"`
}
