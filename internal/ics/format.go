package ics

import (
	"strings"

	"tripcal/internal/model"
)

// textEscaper escapes TEXT values. strings.Replacer scans the input once,
// so a backslash introduced for one character is never escaped again.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\n", `\n`,
)

// Escape escapes backslash, semicolon, comma and newline for a TEXT value.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// formatDate turns YYYY-MM-DD into YYYYMMDD.
func formatDate(iso string) string {
	return strings.ReplaceAll(iso, "-", "")
}

// formatDateTime joins a date and an HH:MM clock into YYYYMMDDTHHMM00.
// An empty clock means midnight; a missing minute part means :00.
func formatDateTime(iso, hhmm string) string {
	if hhmm == "" {
		hhmm = "00:00"
	}
	hour, minute, _ := strings.Cut(hhmm, ":")
	return formatDate(iso) + "T" + pad2(hour) + pad2(minute) + "00"
}

func pad2(s string) string {
	s = strings.TrimSpace(s)
	for len(s) < 2 {
		s = "0" + s
	}
	return s
}

// nextDay returns the calendar day after iso. Dates that do not parse are
// returned unchanged.
func nextDay(iso string) string {
	t, ok := model.ParseDate(iso)
	if !ok {
		return iso
	}
	return t.AddDate(0, 0, 1).Format(model.DateLayout)
}
