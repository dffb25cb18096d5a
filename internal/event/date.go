package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrDateParse is matched by every *DateParseError
var ErrDateParse = errors.New("unparseable date")

// DateParseError reports date text that matched no known shape or named an impossible date
type DateParseError struct {
	Input  string
	Reason string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parsing date %q: %s", e.Input, e.Reason)
}

// Unwrap lets errors.Is(err, ErrDateParse) match
func (e *DateParseError) Unwrap() error {
	return ErrDateParse
}

// YearPolicy decides the year of a date whose text carries none
type YearPolicy string

const (
	// YearCurrent always uses the reference year.
	YearCurrent YearPolicy = "current"
	// YearRollForward uses the next year when the month is earlier than the reference month.
	YearRollForward YearPolicy = "roll_forward"
)

// ParseYearPolicy converts a config value into a YearPolicy
func ParseYearPolicy(s string) (YearPolicy, error) {
	switch YearPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case YearCurrent:
		return YearCurrent, nil
	case YearRollForward, "":
		return YearRollForward, nil
	default:
		return "", fmt.Errorf("unknown year inference policy %q (want %q or %q)", s, YearCurrent, YearRollForward)
	}
}

// DateOptions controls date normalization
type DateOptions struct {
	YearPolicy YearPolicy
	Location   *time.Location
}

// Normalizer converts venue date text into timestamps relative to a clock
type Normalizer struct {
	Options DateOptions
	Now     func() time.Time
}

// NewNormalizer creates a Normalizer using the wall clock
func NewNormalizer(opts DateOptions) *Normalizer {
	return &Normalizer{Options: opts, Now: time.Now}
}

// Normalize parses dateText (and optional timeText) against the normalizer's clock
func (n *Normalizer) Normalize(dateText, timeText string) (time.Time, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return NormalizeDate(dateText, timeText, now(), n.Options)
}

const (
	monthPattern   = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	weekdayPattern = `(?:mon(?:day)?|tue(?:s(?:day)?)?|wed(?:nesday)?|thu(?:r(?:s(?:day)?)?)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?)`
	dayPattern     = `(\d{1,2})(?:st|nd|rd|th)?\b`
)

var (
	// Everything except word characters, whitespace, commas and slashes
	strippable = regexp.MustCompile(`[^\w\s,/]+`)
	spaces     = regexp.MustCompile(`\s+`)

	// "Fri, June 27" or "Friday June 27 2025"
	weekdayMonthDay = regexp.MustCompile(`(?i)\b` + weekdayPattern + `\b,?\s+` + monthPattern + `\s+` + dayPattern + `(?:,?\s+(\d{4})\b)?`)
	// "June 27, 2025"
	monthDayYear = regexp.MustCompile(`(?i)\b` + monthPattern + `\s+` + dayPattern + `,?\s+(\d{4})\b`)
	// "6/27/2025" or "6/27/25"
	numericDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	// "Jun 27"
	monthDay = regexp.MustCompile(`(?i)\b` + monthPattern + `\s+` + dayPattern)
	// "2025-06-27", as found in datetime attributes; matched before punctuation is stripped
	isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:$|[T\s])`)

	// "8pm", "8:30 PM", "7 p.m."
	clock12 = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s?m\b\.?`)
	// "20:00"
	clock24 = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

// dateParts holds the pieces of a matched date shape; year is 0 when absent
type dateParts struct {
	month time.Month
	day   int
	year  int
}

// NormalizeDate converts free-text venue date text into a timestamp.
//
// Recognized shapes, in priority order: ISO year-month-day ("2025-06-27"),
// weekday+month+day ("Fri, June 27"),
// month+day+year ("June 27, 2025"), numeric month/day/year ("6/27/2025") and a bare
// month+day ("Jun 27"). Text without a year gets one from ref according to
// opts.YearPolicy. A clock time is taken from timeText, or from dateText when timeText
// has none; otherwise the result is midnight in opts.Location.
func NormalizeDate(dateText, timeText string, ref time.Time, opts DateOptions) (time.Time, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)

	cleaned := strings.TrimSpace(spaces.ReplaceAllString(strippable.ReplaceAllString(dateText, " "), " "))
	if cleaned == "" {
		return time.Time{}, &DateParseError{Input: dateText, Reason: "empty date text"}
	}

	parts, ok := matchISODate(strings.TrimSpace(dateText))
	if !ok {
		parts, ok = matchDate(cleaned)
	}
	if !ok {
		return time.Time{}, &DateParseError{Input: dateText, Reason: "no recognized date shape"}
	}

	if parts.year == 0 {
		parts.year = inferYear(parts.month, ref, opts.YearPolicy)
	}

	// Let time.Parse reject impossible days such as Feb 30
	canonical := fmt.Sprintf("%s %d %d", parts.month.String()[:3], parts.day, parts.year)
	day, err := time.Parse("Jan 2 2006", canonical)
	if err != nil {
		return time.Time{}, &DateParseError{Input: dateText, Reason: err.Error()}
	}

	hour, minute, ok := parseClock(timeText)
	if !ok {
		hour, minute, _ = parseClock(dateText)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// matchISODate matches a leading year-month-day date
func matchISODate(text string) (dateParts, bool) {
	m := isoDate.FindStringSubmatch(text)
	if m == nil {
		return dateParts{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return dateParts{}, false
	}
	return dateParts{month: time.Month(month), day: day, year: year}, true
}

// matchDate tries each known shape in priority order
func matchDate(text string) (dateParts, bool) {
	if m := weekdayMonthDay.FindStringSubmatch(text); m != nil {
		return monthNameParts(m[1], m[2], m[3])
	}

	if m := monthDayYear.FindStringSubmatch(text); m != nil {
		return monthNameParts(m[1], m[2], m[3])
	}

	if m := numericDate.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if month < 1 || month > 12 {
			return dateParts{}, false
		}
		return dateParts{month: time.Month(month), day: day, year: year}, true
	}

	if m := monthDay.FindStringSubmatch(text); m != nil {
		return monthNameParts(m[1], m[2], "")
	}

	return dateParts{}, false
}

// monthNameParts builds dateParts from a month name, day digits and optional year digits
func monthNameParts(monthName, dayText, yearText string) (dateParts, bool) {
	month, ok := lookupMonth(monthName)
	if !ok {
		return dateParts{}, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil {
		return dateParts{}, false
	}

	year := 0
	if yearText != "" {
		if year, err = strconv.Atoi(yearText); err != nil {
			return dateParts{}, false
		}
	}

	return dateParts{month: month, day: day, year: year}, true
}

// lookupMonth maps any accepted month spelling to a time.Month
func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:3]) {
			return m, true
		}
	}
	return 0, false
}

// inferYear picks a year for a date text that had none
func inferYear(month time.Month, ref time.Time, policy YearPolicy) int {
	year := ref.Year()
	if policy == YearRollForward && month < ref.Month() {
		year++
	}
	return year
}

// parseClock extracts an hour and minute from text like "8pm", "8:30 PM" or "20:00"
func parseClock(text string) (int, int, bool) {
	if text == "" {
		return 0, 0, false
	}

	if m := clock12.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, 0, false
		}
		hour %= 12
		if strings.EqualFold(m[3], "p") {
			hour += 12
		}
		return hour, minute, true
	}

	if m := clock24.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return hour, minute, true
	}

	return 0, 0, false
}
