package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe renders cron specs as text such as "daily at 6:00 AM and every 6 hours"
func Describe(specs ...string) string {
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec == "" {
			continue
		}
		parts = append(parts, describeSpec(spec))
	}
	if len(parts) == 0 {
		return "manual only"
	}
	return strings.Join(parts, " and ")
}

func describeSpec(spec string) string {
	f := strings.Fields(spec)
	if len(f) != 5 || f[2] != "*" || f[3] != "*" || f[4] != "*" {
		return fmt.Sprintf("on cron %q", spec)
	}

	minute, err := strconv.Atoi(f[0])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Sprintf("on cron %q", spec)
	}

	if hour, err := strconv.Atoi(f[1]); err == nil && hour >= 0 && hour < 24 {
		suffix := "AM"
		if hour >= 12 {
			suffix = "PM"
		}
		h := hour % 12
		if h == 0 {
			h = 12
		}
		return fmt.Sprintf("daily at %d:%02d %s", h, minute, suffix)
	}

	if step, ok := strings.CutPrefix(f[1], "*/"); ok && minute == 0 {
		if n, err := strconv.Atoi(step); err == nil && n > 0 {
			if n == 1 {
				return "every hour"
			}
			return fmt.Sprintf("every %d hours", n)
		}
	}

	return fmt.Sprintf("on cron %q", spec)
}
