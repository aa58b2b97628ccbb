package leave

import (
	"fmt"
	"strconv"

	"github.com/yourorg/attendbot/internal/command"
)

// Leave type labels as persisted in the ledger.
const (
	TypeFullDay          = "연차"
	TypeHalfDayMorning   = "반차(오전)"
	TypeHalfDayAfternoon = "반차(오후)"
)

// Header is the leave-ledger CSV header.
var Header = []string{"name", "year", "month", "day", "type", "used"}

// Entry is one leave application with its running balance at that point of
// the ledger. Used moves in 0.5 steps.
type Entry struct {
	Name  string
	Year  int
	Month int
	Day   int
	Type  string
	Used  float64
}

// TypeFor maps a parsed leave command onto the persisted type label.
func TypeFor(kind command.LeaveKind) string {
	switch kind {
	case command.HalfDayMorning:
		return TypeHalfDayMorning
	case command.HalfDayAfternoon:
		return TypeHalfDayAfternoon
	default:
		return TypeFullDay
	}
}

// Delta is the balance cost of one entry: a full day counts 1, either half
// day counts 0.5.
func Delta(leaveType string) float64 {
	if leaveType == TypeFullDay {
		return 1
	}
	return 0.5
}

// Row renders the entry as a leave-ledger row.
func (e Entry) Row() []string {
	return []string{
		e.Name,
		strconv.Itoa(e.Year),
		strconv.Itoa(e.Month),
		strconv.Itoa(e.Day),
		e.Type,
		strconv.FormatFloat(e.Used, 'f', -1, 64),
	}
}

// parseRow reads a ledger row back into an Entry. Header rows, trailing
// blank rows, and otherwise malformed rows return ok=false and are skipped
// by the callers.
func parseRow(row []string) (Entry, bool) {
	if len(row) < 6 || row[0] == "" || row[0] == "name" {
		return Entry{}, false
	}
	y, err1 := strconv.Atoi(row[1])
	m, err2 := strconv.Atoi(row[2])
	d, err3 := strconv.Atoi(row[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return Entry{}, false
	}
	used, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: row[0], Year: y, Month: m, Day: d, Type: row[4], Used: used}, true
}

// DuplicateEntryError reports a second application for a date that already
// has one. It is surfaced to the sender; no write happens.
type DuplicateEntryError struct {
	Year, Month, Day int
	ExistingType     string
}

func (e DuplicateEntryError) Error() string {
	return fmt.Sprintf("오류: 이미 해당 날짜에 %s 신청이 완료되었습니다.", e.ExistingType)
}
