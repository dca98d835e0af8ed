package nlu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

var accents = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")

func fold(s string) string {
	return accents.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// morningRe matches "mañana" used as a time of day rather than as tomorrow.
var morningRe = regexp.MustCompile(`\b(?:a|por|de|en) la manana\b`)

var dayMonthRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?$`)

// NormalizeDate resolves a date expression to YYYY-MM-DD relative to now,
// whose location is the business time zone. It understands ISO dates,
// day/month[/year], "hoy", "mañana", "pasado mañana" and weekday names (the
// next occurrence, never today). Dates before today are rejected.
func NormalizeDate(raw string, now time.Time) (string, bool) {
	s := fold(raw)
	s = strings.TrimSpace(morningRe.ReplaceAllString(s, ""))
	for _, prefix := range []string{"para el ", "para ", "el "} {
		s = strings.TrimPrefix(s, prefix)
	}
	if s == "" {
		return "", false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		if t.Before(today) {
			return "", false
		}
		return t.Format(time.DateOnly), true
	}

	switch {
	case strings.Contains(s, "pasado manana"):
		return today.AddDate(0, 0, 2).Format(time.DateOnly), true
	case strings.Contains(s, "manana"):
		return today.AddDate(0, 0, 1).Format(time.DateOnly), true
	case s == "hoy" || strings.HasPrefix(s, "hoy "):
		return today.Format(time.DateOnly), true
	}

	for name, wd := range weekdays {
		if strings.Contains(s, name) {
			ahead := (int(wd) - int(today.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return today.AddDate(0, 0, ahead).Format(time.DateOnly), true
		}
	}

	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if t.Day() != day || int(t.Month()) != month {
			return "", false
		}
		if t.Before(today) {
			if m[3] != "" {
				return "", false
			}
			t = t.AddDate(1, 0, 0)
		}
		return t.Format(time.DateOnly), true
	}
	return "", false
}

var timeRe = regexp.MustCompile(`(\d{1,2})(?:\s*[:.h]\s*(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.|hs|h)?`)

// NormalizeTime resolves a time expression to HH:MM. An hour from 1 to 7
// written without a leading zero is read as afternoon ("a las 4" is 16:00),
// the way shop visits are phrased; "07:00" is already 24-hour form.
func NormalizeTime(raw string) (string, bool) {
	s := fold(raw)
	if s == "" {
		return "", false
	}
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	} else if strings.Contains(s, "y media") {
		minute = 30
	} else if strings.Contains(s, "y cuarto") {
		minute = 15
	}

	suffix := strings.ReplaceAll(m[3], ".", "")
	switch {
	case suffix == "pm" || strings.Contains(s, "de la tarde") || strings.Contains(s, "de la noche"):
		if hour < 12 {
			hour += 12
		}
	case suffix == "am" || strings.Contains(s, "de la manana"):
		if hour == 12 {
			hour = 0
		}
	case hour >= 1 && hour <= 7 && !strings.HasPrefix(m[1], "0"):
		hour += 12
	}

	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
