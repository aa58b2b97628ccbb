package access

// Kind classifies one attendance event.
type Kind string

const (
	CheckIn  Kind = "checkIn"
	CheckOut Kind = "checkOut"
	StepOut  Kind = "stepOut"
	Return   Kind = "return"
)

// Labels are the literal kind strings persisted to the ledger and accepted
// from structured-form messages.
const (
	LabelCheckIn  = "출근"
	LabelCheckOut = "퇴근"
	LabelStepOut  = "외출"
	LabelReturn   = "복귀"
)

var labelToKind = map[string]Kind{
	LabelCheckIn:  CheckIn,
	LabelCheckOut: CheckOut,
	LabelStepOut:  StepOut,
	LabelReturn:   Return,
}

var kindToLabel = map[Kind]string{
	CheckIn:  LabelCheckIn,
	CheckOut: LabelCheckOut,
	StepOut:  LabelStepOut,
	Return:   LabelReturn,
}

// KindForLabel maps a ledger/chat label onto a Kind.
func KindForLabel(label string) (Kind, bool) {
	k, ok := labelToKind[label]
	return k, ok
}

// Label returns the persisted form of the kind.
func (k Kind) Label() string { return kindToLabel[k] }

// Event is one attendance event ready to be appended to an actor's ledger.
// The timestamp fields are kept as the strings that will be persisted:
// either taken verbatim from a structured message or decomposed from the
// message send time, never both.
type Event struct {
	Name   string
	Year   string
	Month  string
	Day    string
	Hour   string
	Minute string
	Second string
	Kind   Kind
}

// Header is the access-ledger CSV header.
var Header = []string{"name", "year", "month", "day", "hour", "minute", "second", "type"}

// Row renders the event as an access-ledger row.
func (e Event) Row() []string {
	return []string{e.Name, e.Year, e.Month, e.Day, e.Hour, e.Minute, e.Second, e.Kind.Label()}
}

// Message is one inbound chat message as delivered by the external
// transport.
type Message struct {
	Text         string
	SenderHandle string
	SentAt       int64
}
