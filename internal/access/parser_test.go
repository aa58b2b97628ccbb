package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/attendbot/internal/identity"
)

var noResolver = identity.StaticResolver{}

func TestParseStructuredRoundTrip(t *testing.T) {
	cases := []struct {
		text string
		name string
		kind Kind
	}{
		{"Kim(팀) 2023.05.01 09:00:00 : 출근", "Kim", CheckIn},
		{"Kim 2023.05.01 18:00:00 : 퇴근", "Kim", CheckOut},
		{"Lee 2023.12.24 13:05:30 : 외출", "Lee", StepOut},
		{"Lee 2023.12.24 14:00:00 : 복귀", "Lee", Return},
	}
	for _, tc := range cases {
		ev, ok, err := ParseMessage(context.Background(), Message{Text: tc.text}, noResolver)
		if err != nil || !ok {
			t.Fatalf("ParseMessage(%q) = ok=%v err=%v", tc.text, ok, err)
		}
		if ev.Name != tc.name {
			t.Errorf("%q: name = %q, want %q", tc.text, ev.Name, tc.name)
		}
		if ev.Kind != tc.kind {
			t.Errorf("%q: kind = %v, want %v", tc.text, ev.Kind, tc.kind)
		}
		if ev.Year != "2023" {
			t.Errorf("%q: year = %q, want 2023 verbatim", tc.text, ev.Year)
		}
	}
}

func TestParseStructuredNameWithSpaces(t *testing.T) {
	msg := Message{Text: "Kim Min Su 2023.05.01 09:00:00 : 출근"}
	ev, ok, err := ParseMessage(context.Background(), msg, noResolver)
	if err != nil || !ok {
		t.Fatalf("ParseMessage() = ok=%v err=%v", ok, err)
	}
	if ev.Name != "Kim" {
		t.Errorf("name = %q, want first token Kim", ev.Name)
	}
	if ev.Year != "2023" || ev.Day != "01" || ev.Hour != "09" {
		t.Errorf("date/time must come from the last two tokens: %+v", ev)
	}
}

func TestParseKeywordFallback(t *testing.T) {
	resolver := identity.StaticResolver{"U42": "Park"}
	sentAt := time.Date(2023, 5, 1, 18, 30, 0, 0, time.Local).Unix()

	msg := Message{Text: "저 먼저 퇴근하겠습니다", SenderHandle: "U42", SentAt: sentAt}
	ev, ok, err := ParseMessage(context.Background(), msg, resolver)
	if err != nil || !ok {
		t.Fatalf("ParseMessage() = ok=%v err=%v", ok, err)
	}
	if ev.Kind != CheckOut {
		t.Errorf("kind = %v, want CheckOut", ev.Kind)
	}
	if ev.Name != "Park" {
		t.Errorf("name = %q, want Park", ev.Name)
	}
	if ev.Year != "2023" || ev.Month != "5" || ev.Day != "1" || ev.Hour != "18" {
		t.Errorf("timestamp not derived from send time: %+v", ev)
	}
}

func TestParseKeywordAsymmetry(t *testing.T) {
	resolver := identity.StaticResolver{"U42": "Park"}

	// Check-in and return keywords are never auto-detected in free text.
	for _, text := range []string{"방금 출근했어요", "지금 복귀합니다"} {
		_, ok, err := ParseMessage(context.Background(), Message{Text: text, SenderHandle: "U42", SentAt: 1}, resolver)
		if err != nil {
			t.Fatalf("ParseMessage(%q) error = %v", text, err)
		}
		if ok {
			t.Errorf("ParseMessage(%q) detected an event, want NoEvent", text)
		}
	}
}

func TestParseKeywordUnresolvableSender(t *testing.T) {
	msg := Message{Text: "외출 다녀오겠습니다", SenderHandle: "ghost", SentAt: 1}
	_, ok, err := ParseMessage(context.Background(), msg, noResolver)
	var lookupErr identity.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("error = %v, want LookupError", err)
	}
	if ok {
		t.Error("event must be dropped when the sender cannot be attributed")
	}
}

func TestParseNoEvent(t *testing.T) {
	for _, text := range []string{"", "점심 뭐 먹을까요", "Kim 2023.05.01 : 회의"} {
		_, ok, err := ParseMessage(context.Background(), Message{Text: text}, noResolver)
		if err != nil {
			t.Fatalf("ParseMessage(%q) error = %v", text, err)
		}
		if ok {
			t.Errorf("ParseMessage(%q) = event, want NoEvent", text)
		}
	}
}
