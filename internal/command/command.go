// Package command recognizes the chat mini-language used for queries and
// leave applications: text starting with the // marker followed by a
// command word and positional arguments.
package command

import (
	"strconv"
	"strings"
	"time"
)

// Marker introduces a command message.
const Marker = "//"

// Scope selects the aggregation window of a query.
type Scope int

const (
	Daily Scope = iota + 1
	Weekly
	Monthly
)

// Scope labels as they appear in chat.
const (
	ScopeLabelDaily   = "일별"
	ScopeLabelWeekly  = "주별"
	ScopeLabelMonthly = "월별"
)

func (s Scope) Label() string {
	switch s {
	case Daily:
		return ScopeLabelDaily
	case Weekly:
		return ScopeLabelWeekly
	case Monthly:
		return ScopeLabelMonthly
	}
	return ""
}

// QuerySpec is a validated access-history query. Day is set only for
// Daily, Week (1..5) only for Weekly.
type QuerySpec struct {
	Scope Scope
	Year  int
	Month int
	Day   int
	Week  int
}

// LeaveKind distinguishes the leave application commands.
type LeaveKind int

const (
	FullDay LeaveKind = iota + 1
	HalfDayMorning
	HalfDayAfternoon
)

// Command is the parsed form of one command message. Exactly one of the
// pointer fields is set, matching Name.
type Command struct {
	Name string

	Query        *QuerySpec // //조회 <scope> <date>
	LeaveBalance bool       // //조회 with no arguments
	Leave        *LeaveSpec // //연차, //반차
	Sort         bool       // //sort
	Help         bool       // //h, //help
}

// LeaveSpec is a validated leave application.
type LeaveSpec struct {
	Kind  LeaveKind
	Actor string
	Year  int
	Month int
	Day   int
}

// ValidationError carries the usage message sent back to the sender. It
// aborts the command; it is never fatal.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// Usage strings, kept as single constants so handlers and tests agree on
// the exact text.
const (
	UsageScope     = "조회 범위 명령어 오류.\n조회하려면 다음과 같이 [일별|주별|월별] 중 한가지를 입력해주세요.\n//조회 [일별|주별|월별] [날짜 (일별: YYYY.MM.DD | 주별: YYYY.MM.W(1~5) | 월별: YYYY.MM)]"
	UsageDaily     = "날짜 명령어 오류.\n일별 조회에 대한 날짜 형식은 다음과 같습니다: YYYY.MM.DD"
	UsageWeekly    = "날짜 명령어 오류.\n주별 조회에 대한 날짜 형식은 다음과 같습니다: YYYY.MM.W (W: 해당 주, 1~5)"
	UsageMonthly   = "날짜 명령어 오류.\n월별 조회에 대한 날짜 형식은 다음과 같습니다: YYYY.MM"
	UsageFullDay   = "오류: 입력 형식 불일치. 다음과 같이 입력하세요.\n//연차 [이름] [날짜 : YYYY.MM.DD]"
	UsageHalfDay   = "오류: 입력 형식 불일치. 다음과 같이 입력하세요.\n//반차 [이름] [날짜 : YYYY.MM.DD] [오전|오후]"
	UsageMeridiem  = "오류: '오전'이나 '오후' 중에서 입력해 주세요."
	ErrNoSuchDate  = "오류: 존재하지 않는 날짜."
	UsageWeekRange = "오류: 주는 1에서 5 사이여야 합니다."

	HelpText = "자동으로 출퇴근 기록이 저장됩니다.\n또는 '퇴근'이나 '외출'이 들어간 메세지를 분석하여 알아서 저장해줍니다.\n조회하려면 다음을 입력하세요:\n//조회 [일별|주별|월별] [날짜 (일별: YYYY.MM.DD | 주별: YYYY.MM.W(1~5) | 월별: YYYY.MM)]"
)

// IsCommand reports whether the text carries the command marker.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, Marker)
}

// Parse validates a command message. ok=false means the text is not a
// command at all; a recognized command with bad arguments returns a
// ValidationError instead.
func Parse(text string) (Command, bool, error) {
	if !IsCommand(text) {
		return Command{}, false, nil
	}
	fields := strings.Fields(strings.TrimPrefix(text, Marker))
	if len(fields) == 0 {
		return Command{}, false, nil
	}
	name, args := fields[0], fields[1:]
	cmd := Command{Name: name}

	switch name {
	case "조회":
		if len(args) == 0 {
			cmd.LeaveBalance = true
			return cmd, true, nil
		}
		q, err := parseQuery(args)
		if err != nil {
			return Command{}, true, err
		}
		cmd.Query = q
		return cmd, true, nil
	case "연차":
		spec, err := parseLeave(FullDay, args)
		if err != nil {
			return Command{}, true, err
		}
		cmd.Leave = spec
		return cmd, true, nil
	case "반차":
		spec, err := parseLeave(HalfDayMorning, args)
		if err != nil {
			return Command{}, true, err
		}
		cmd.Leave = spec
		return cmd, true, nil
	case "sort":
		cmd.Sort = true
		return cmd, true, nil
	case "h", "help":
		cmd.Help = true
		return cmd, true, nil
	default:
		return Command{}, true, ValidationError{Message: UsageScope}
	}
}

func parseQuery(args []string) (*QuerySpec, error) {
	date := ""
	if len(args) > 1 {
		date = args[1]
	}
	return ParseQuery(args[0], date)
}

// ParseQuery validates a scope label and date argument pair. It is shared
// by the chat command form and the interactive menu flow.
func ParseQuery(scopeLabel, date string) (*QuerySpec, error) {
	var scope Scope
	switch scopeLabel {
	case ScopeLabelDaily:
		scope = Daily
	case ScopeLabelWeekly:
		scope = Weekly
	case ScopeLabelMonthly:
		scope = Monthly
	default:
		return nil, ValidationError{Message: UsageScope}
	}
	if date == "" {
		switch scope {
		case Daily:
			return nil, ValidationError{Message: UsageDaily}
		case Weekly:
			return nil, ValidationError{Message: UsageWeekly}
		default:
			return nil, ValidationError{Message: UsageMonthly}
		}
	}

	parts := strings.Split(date, ".")
	switch scope {
	case Daily:
		if len(parts) != 3 {
			return nil, ValidationError{Message: UsageDaily}
		}
		y, m, d, err := parseCalendarDate(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		return &QuerySpec{Scope: Daily, Year: y, Month: m, Day: d}, nil
	case Weekly:
		if len(parts) != 3 {
			return nil, ValidationError{Message: UsageWeekly}
		}
		y, m, err := parseYearMonth(parts[0], parts[1], UsageWeekly)
		if err != nil {
			return nil, err
		}
		w, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, ValidationError{Message: UsageWeekly}
		}
		if w < 1 || w > 5 {
			return nil, ValidationError{Message: UsageWeekRange}
		}
		return &QuerySpec{Scope: Weekly, Year: y, Month: m, Week: w}, nil
	default:
		if len(parts) != 2 {
			return nil, ValidationError{Message: UsageMonthly}
		}
		y, m, err := parseYearMonth(parts[0], parts[1], UsageMonthly)
		if err != nil {
			return nil, err
		}
		return &QuerySpec{Scope: Monthly, Year: y, Month: m}, nil
	}
}

func parseLeave(kind LeaveKind, args []string) (*LeaveSpec, error) {
	usage := UsageFullDay
	wantArgs := 2
	if kind != FullDay {
		usage = UsageHalfDay
		wantArgs = 3
	}
	if len(args) != wantArgs {
		return nil, ValidationError{Message: usage}
	}
	if kind != FullDay {
		switch args[2] {
		case "오전":
			kind = HalfDayMorning
		case "오후":
			kind = HalfDayAfternoon
		default:
			return nil, ValidationError{Message: UsageMeridiem}
		}
	}

	parts := strings.Split(args[1], ".")
	if len(parts) != 3 {
		return nil, ValidationError{Message: usage}
	}
	y, m, d, err := parseCalendarDate(parts[0], parts[1], parts[2])
	if err != nil {
		return nil, err
	}
	return &LeaveSpec{Kind: kind, Actor: args[0], Year: y, Month: m, Day: d}, nil
}

// parseCalendarDate checks that the date round-trips through the calendar:
// building a time.Date from the parsed fields must reproduce them, which
// rejects entries like 2023.02.30.
func parseCalendarDate(ys, ms, ds string) (int, int, int, error) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, ValidationError{Message: ErrNoSuchDate}
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return 0, 0, 0, ValidationError{Message: ErrNoSuchDate}
	}
	return y, m, d, nil
}

func parseYearMonth(ys, ms, usage string) (int, int, error) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil {
		return 0, 0, ValidationError{Message: usage}
	}
	if m < 1 || m > 12 {
		return 0, 0, ValidationError{Message: ErrNoSuchDate}
	}
	return y, m, nil
}
