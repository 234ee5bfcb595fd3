package storehours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const STORE_OPENING_CONTEXT = "store-opening-hours"

const timeRangeLength = 8

// Horário padrão: domingo, quarta a sábado, das 18h às 22h.
var DEFAULT_OPEN_DAYS = []int{0, 3, 4, 5, 6}

const DEFAULT_START = 1800
const DEFAULT_END = 2200

// Day is one weekday of the opening schedule. Start and End are HHMM numbers.
type Day struct {
	Day         int    `json:"day"`
	Enabled     bool   `json:"enabled"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	RangeDigits string `json:"rangeDigits"`
}

type Status struct {
	IsOpen  bool `json:"isOpen"`
	Day     int  `json:"day"`
	NowTime int  `json:"nowTime"`
	Start   int  `json:"start"`
	End     int  `json:"end"`
	Enabled bool `json:"enabled"`
}

// BuildSchedule monta os 7 dias a partir das settings day-N-enabled e
// day-N-range, caindo nos defaults quando a setting não existe ou é inválida.
func BuildSchedule(settings map[string]string, fallbackOpenDays []int, fallbackStart, fallbackEnd int) []Day {
	fallbackRange := fmt.Sprintf("%04d%04d", fallbackStart, fallbackEnd)

	out := make([]Day, 0, 7)
	for day := 0; day < 7; day++ {
		enabled := containsDay(fallbackOpenDays, day)
		if raw, ok := settings[fmt.Sprintf("day-%d-enabled", day)]; ok {
			enabled = parseBool(raw)
		}

		rangeDigits := NormalizeRangeDigits(settings[fmt.Sprintf("day-%d-range", day)], fallbackRange)
		start, end := rangeToNumbers(rangeDigits, fallbackStart, fallbackEnd)

		out = append(out, Day{
			Day:         day,
			Enabled:     enabled,
			Start:       start,
			End:         end,
			RangeDigits: rangeDigits,
		})
	}
	return out
}

// NormalizeRangeDigits turns "18:00 - 22:30" like input into "18002230".
// Anything shorter than 8 digits yields fallback; hours and minutes are clamped.
func NormalizeRangeDigits(raw, fallback string) string {
	digits := onlyDigits(raw)
	if len(digits) < timeRangeLength {
		return fallback
	}
	digits = digits[:timeRangeLength]
	return normalizeTime(digits[:4]) + normalizeTime(digits[4:])
}

// ComputeStatus reports whether the store is open at now, read in loc.
// The range is half-open: Start inclusive, End exclusive.
func ComputeStatus(schedule []Day, now time.Time, loc *time.Location) Status {
	if loc != nil {
		now = now.In(loc)
	}
	day := int(now.Weekday())
	nowTime := now.Hour()*100 + now.Minute()

	for _, entry := range schedule {
		if entry.Day != day {
			continue
		}
		return Status{
			IsOpen:  entry.Enabled && nowTime >= entry.Start && nowTime < entry.End,
			Day:     day,
			NowTime: nowTime,
			Start:   entry.Start,
			End:     entry.End,
			Enabled: entry.Enabled,
		}
	}
	return Status{Day: day, NowTime: nowTime}
}

func normalizeTime(digits string) string {
	hours, _ := strconv.Atoi(digits[:2])
	minutes, _ := strconv.Atoi(digits[2:4])
	return fmt.Sprintf("%02d%02d", clamp(hours, 0, 23), clamp(minutes, 0, 59))
}

func rangeToNumbers(rangeDigits string, fallbackStart, fallbackEnd int) (int, int) {
	if len(rangeDigits) != timeRangeLength {
		return fallbackStart, fallbackEnd
	}
	start, err := strconv.Atoi(rangeDigits[:4])
	if err != nil {
		start = fallbackStart
	}
	end, err := strconv.Atoi(rangeDigits[4:])
	if err != nil {
		end = fallbackEnd
	}
	return start, end
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on":
		return true
	}
	return false
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func onlyDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
