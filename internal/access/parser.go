package access

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/attendbot/internal/identity"
)

const structuredSeparator = " : "

// keywordKinds are the fallback matchers applied, in order, to free-form
// text. Only check-out and step-out are auto-detected; check-in and return
// must arrive in structured form.
var keywordKinds = []Kind{CheckOut, StepOut}

// ParseMessage turns one raw message into at most one Event.
//
// The structured form is "<name>[(suffix)] <YYYY.MM.DD> <HH:MM:SS> : <label>".
// Anything else is scanned for the fallback keywords; on a hit the actor is
// resolved from the sender handle and the timestamp is decomposed from the
// message send time. A message matching neither form yields ok=false, which
// is not an error and must not produce a ledger write.
func ParseMessage(ctx context.Context, msg Message, resolver identity.Resolver) (Event, bool, error) {
	if msg.Text == "" {
		return Event{}, false, nil
	}
	if ev, ok := parseStructured(msg.Text); ok {
		return ev, true, nil
	}
	for _, kind := range keywordKinds {
		if !strings.Contains(msg.Text, kind.Label()) {
			continue
		}
		name, err := resolver.Resolve(ctx, msg.SenderHandle)
		if err != nil {
			return Event{}, false, err
		}
		ev := eventAt(name, kind, time.Unix(msg.SentAt, 0))
		return ev, true, nil
	}
	return Event{}, false, nil
}

func parseStructured(text string) (Event, bool) {
	parts := strings.Split(text, structuredSeparator)
	if len(parts) != 2 {
		return Event{}, false
	}
	kind, ok := KindForLabel(strings.TrimSpace(parts[1]))
	if !ok {
		return Event{}, false
	}

	tokens := strings.Fields(parts[0])
	if len(tokens) < 3 {
		return Event{}, false
	}
	// Names containing spaces push the date and time to the tail.
	name := tokens[0]
	date := tokens[len(tokens)-2]
	clock := tokens[len(tokens)-1]

	name = strings.SplitN(name, "(", 2)[0]
	if name == "" {
		return Event{}, false
	}

	dateParts := strings.Split(date, ".")
	clockParts := strings.Split(clock, ":")
	if len(dateParts) != 3 || len(clockParts) != 3 {
		return Event{}, false
	}
	for _, p := range append(dateParts, clockParts...) {
		if _, err := strconv.Atoi(p); err != nil {
			return Event{}, false
		}
	}

	return Event{
		Name:   name,
		Year:   dateParts[0],
		Month:  dateParts[1],
		Day:    dateParts[2],
		Hour:   clockParts[0],
		Minute: clockParts[1],
		Second: clockParts[2],
		Kind:   kind,
	}, true
}

// eventAt decomposes a wall-clock instant into unpadded field strings, the
// same shape keyword-detected events have always been persisted with.
func eventAt(name string, kind Kind, t time.Time) Event {
	return Event{
		Name:   name,
		Year:   strconv.Itoa(t.Year()),
		Month:  strconv.Itoa(int(t.Month())),
		Day:    strconv.Itoa(t.Day()),
		Hour:   strconv.Itoa(t.Hour()),
		Minute: strconv.Itoa(t.Minute()),
		Second: strconv.Itoa(t.Second()),
		Kind:   kind,
	}
}
