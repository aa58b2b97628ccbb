package access

import (
	"fmt"
	"strconv"
	"time"

	"github.com/yourorg/attendbot/internal/command"
)

// Fixed policy constants of the duration calculation.
const (
	lunchDeductionSeconds = 3600
	standardDayHours      = 9
)

// Counts holds the per-kind event counters of one aggregation.
type Counts struct {
	CheckIn  int
	CheckOut int
	StepOut  int
	Return   int
}

// Summary is the aggregation result. It is plain data; turning it into a
// chat reply is the caller's job.
type Summary struct {
	Scope              command.Scope
	TotalDurationLabel string
	CheckInLabel       string
	CheckOutLabel      string
	RemainingLabel     string
	StepOutLabel       string
	Lines              []string
	Counts             Counts
}

// Aggregate filters ledger rows by the query window and folds them into a
// work-duration summary. Rows are walked in file order, which is arrival
// order, not necessarily time order.
func Aggregate(rows [][]string, q command.QuerySpec, now time.Time) Summary {
	sum := Summary{Scope: q.Scope}

	var (
		lastCheckIn, lastCheckOut time.Time
		lastStepOut, lastReturn   time.Time
		pendingIn, pendingOut     time.Time
		havePending, haveStepOut  bool
		totalSeconds              int64
		stepOutSeconds            int64
		haveTotal                 bool
	)

	for _, row := range rows {
		if len(row) < 8 || !inWindow(row, q) {
			continue
		}
		t, ok := rowTime(row)
		if !ok {
			continue
		}
		kind, ok := KindForLabel(row[7])
		if !ok {
			continue
		}

		switch kind {
		case CheckIn:
			sum.Counts.CheckIn++
			lastCheckIn = t
			pendingIn, havePending = t, true
		case CheckOut:
			sum.Counts.CheckOut++
			lastCheckOut = t
			// Cross-midnight sessions are excluded from the sum on
			// purpose: only a check-out on the check-in's calendar day
			// closes a countable session.
			if havePending && sameDay(pendingIn, t) {
				totalSeconds += int64(t.Sub(pendingIn).Seconds()) - lunchDeductionSeconds
				haveTotal = true
				havePending = false
			}
		case StepOut:
			sum.Counts.StepOut++
			lastStepOut = t
			pendingOut, haveStepOut = t, true
		case Return:
			sum.Counts.Return++
			lastReturn = t
			if haveStepOut && sameDay(pendingOut, t) {
				stepOutSeconds += int64(t.Sub(pendingOut).Seconds())
				haveStepOut = false
			}
		}
		sum.Lines = append(sum.Lines, eventLine(row))
	}

	if q.Scope == command.Daily {
		fillDaily(&sum, lastCheckIn, lastCheckOut, lastStepOut, lastReturn, now)
		return sum
	}

	if haveTotal {
		sum.TotalDurationLabel = FormatDuration(totalSeconds)
	}
	if stepOutSeconds > 0 {
		sum.StepOutLabel = FormatDuration(stepOutSeconds)
	}
	return sum
}

// fillDaily applies the single-day duration policy: the most recent
// check-in/check-out pair, a fixed lunch deduction, and the matched
// step-out interval when the counts pair up.
func fillDaily(sum *Summary, checkIn, checkOut, stepOut, ret time.Time, now time.Time) {
	if sum.Counts.CheckIn > 0 {
		sum.CheckInLabel = checkIn.Format("15:04:05")
	}
	if sum.Counts.CheckOut > 0 {
		sum.CheckOutLabel = checkOut.Format("15:04:05")
		if sum.Counts.CheckIn == 0 {
			return
		}
		total := int64(checkOut.Sub(checkIn).Seconds()) - lunchDeductionSeconds
		if sum.Counts.StepOut > 0 && sum.Counts.StepOut == sum.Counts.Return {
			total -= int64(ret.Sub(stepOut).Seconds())
		}
		sum.TotalDurationLabel = FormatDuration(total)
		return
	}
	// Open session: an afternoon arrival today gets a remaining-time
	// estimate against the standard day; a morning arrival gets nothing
	// numeric.
	if sum.Counts.CheckIn > 0 && sameDay(checkIn, now) && checkIn.Hour() >= 12 {
		expected := checkIn.Add(standardDayHours * time.Hour)
		if remaining := int64(expected.Sub(now).Seconds()); remaining > 0 {
			sum.RemainingLabel = "퇴근까지 얼마나?: " + FormatDuration(remaining)
		}
	}
}

// inWindow matches a row's raw date fields against the query. Each field
// comparison tolerates a single leading zero so that mixed zero-padding in
// legacy rows ("05" vs "5") keeps matching.
func inWindow(row []string, q command.QuerySpec) bool {
	if !fieldMatch(row[1], q.Year) || !fieldMatch(row[2], q.Month) {
		return false
	}
	switch q.Scope {
	case command.Daily:
		return fieldMatch(row[3], q.Day)
	case command.Weekly:
		y, err1 := strconv.Atoi(row[1])
		d, err2 := strconv.Atoi(row[3])
		if err1 != nil || err2 != nil {
			return false
		}
		return WeekOfMonth(y, q.Month, d) == q.Week
	default:
		return true
	}
}

func fieldMatch(raw string, target int) bool {
	s := strconv.Itoa(target)
	return raw == s || raw == "0"+s
}

// WeekOfMonth buckets a day into weeks 1..5 by offsetting the day of month
// with the weekday of the 1st and dividing by seven. This is not ISO week
// numbering; it is the grouping the ledgers have always been queried with.
func WeekOfMonth(year, month, day int) int {
	first := int(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local).Weekday())
	return (day + first + 6) / 7
}

func rowTime(row []string) (time.Time, bool) {
	nums := make([]int, 6)
	for i := 0; i < 6; i++ {
		n, err := strconv.Atoi(row[i+1])
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.Local), true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func eventLine(row []string) string {
	return fmt.Sprintf("%s년 %s월 %s일 %s시 %s분 %s초 : %s", row[1], row[2], row[3], row[4], row[5], row[6], row[7])
}

// FormatDuration renders seconds as whole hours with a truncated tenths
// fraction: 28800 → "8시간", 27000 → "7.5시간". Negative totals keep their
// sign; they can legitimately occur when the lunch deduction exceeds a
// short session.
func FormatDuration(seconds int64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	tenth := (seconds % 3600) / 360
	if tenth == 0 {
		return fmt.Sprintf("%s%d시간", sign, hours)
	}
	return fmt.Sprintf("%s%d.%d시간", sign, hours, tenth)
}
