package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/dialogue"
)

var (
	isoDateTimeRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}`)
	dottedDateRe  = regexp.MustCompile(`(\d{2})[./](\d{2})[./](\d{4})`)
	clockRe       = regexp.MustCompile(`(\d{1,2}):(\d{2})`)

	peopleNounRe = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons?|guests?|ppl|человек|чел|людей|людини|осіб|os[oô]b|osoby)`)
	standaloneRe = regexp.MustCompile(`\b(\d{1,2})\b`)
	phoneLikeRe  = regexp.MustCompile(`\+?\d[\d\-()\s]{7,}\d`)

	hashIDRe = regexp.MustCompile(`#\s*(\d{1,6})(?:\D|$)`)
	// noun forms only: "reserve 6 seats" is a party size, not an id
	wordIDRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:id|booking|reservations?|rezerv[aá]ci\p{L}*|брон(?:ью|ь|и|е))\s*(?:number|no\.?|номер|číslo|[:#№])?\s*(\d{1,6})(?:\D|$)`)
)

const (
	capitalName  = `\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*)*`
	anyCaseName  = `\p{L}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*)*`
	notLetterPre = `(?:^|[^\p{L}])`
)

// Intro phrases are matched case-insensitively. Explicit phrases accept a
// lowercase first name; the bare "I am" / "я" forms need a capitalised one
// so "I am calling" or "я хочу" is not read as a name. Trailing words are
// kept only while capitalised.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:my name is)\s+(` + anyCaseName + `)`),
	regexp.MustCompile(notLetterPre + `(?i:i am|i'm)\s+(` + capitalName + `)`),
	regexp.MustCompile(`(?i:меня зовут)\s+(` + anyCaseName + `)`),
	regexp.MustCompile(`(?i:мене звати)\s+(` + anyCaseName + `)`),
	regexp.MustCompile(notLetterPre + `(?i:я)\s+(` + capitalName + `)`),
	regexp.MustCompile(`(?i:vol[aá]m sa)\s+(` + anyCaseName + `)`),
}

// ExtractEntities runs the four field extractors and returns nil when none
// of them found anything.
func ExtractEntities(text string) *dialogue.Entities {
	e := &dialogue.Entities{
		Name:          ExtractName(text),
		People:        ExtractPeople(text),
		ReservationID: ExtractReservationID(text),
	}
	if dt, ok := ExtractDateTime(text); ok {
		e.DateTime = &dt
	}
	return e.OrNil()
}

// ExtractDateTime finds a wall-clock date and time. The result is in UTC.
// An ISO-like substring with impossible values yields nothing; the dotted
// form is only tried when no ISO-like substring exists.
func ExtractDateTime(text string) (time.Time, bool) {
	if m := isoDateTimeRe.FindString(text); m != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", strings.Replace(m, "T", " ", 1), time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	dm := dottedDateRe.FindStringSubmatch(text)
	if dm == nil {
		return time.Time{}, false
	}
	// time token must not be taken from inside the date itself
	rest := strings.Replace(text, dm[0], " ", 1)
	tm := clockRe.FindStringSubmatch(rest)
	if tm == nil {
		return time.Time{}, false
	}
	day, month, year := atoi(dm[1]), atoi(dm[2]), atoi(dm[3])
	hour, minute := atoi(tm[1]), atoi(tm[2])
	if hour > 23 || minute > 59 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// ExtractPeople prefers "<n> people" style phrases. Otherwise it takes the
// first standalone one or two digit number after masking times, dates,
// reservation ids and phone numbers. Zero means not found.
func ExtractPeople(text string) int {
	if m := peopleNounRe.FindStringSubmatch(text); m != nil {
		if n := atoi(m[1]); n > 0 {
			return n
		}
	}
	masked := text
	for _, re := range []*regexp.Regexp{isoDateTimeRe, dottedDateRe, clockRe, phoneLikeRe, hashIDRe, wordIDRe} {
		masked = re.ReplaceAllStringFunc(masked, blank)
	}
	if m := standaloneRe.FindStringSubmatch(masked); m != nil {
		return atoi(m[1])
	}
	return 0
}

func ExtractName(text string) string {
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

// ExtractReservationID returns the 1-6 digit number after "#", "id", or a
// booking/reservation noun. Zero means not found.
func ExtractReservationID(text string) int {
	var best []int
	for _, re := range []*regexp.Regexp{hashIDRe, wordIDRe} {
		if loc := re.FindStringSubmatchIndex(text); loc != nil && (best == nil || loc[2] < best[2]) {
			best = loc
		}
	}
	if best == nil {
		return 0
	}
	return atoi(text[best[2]:best[3]])
}

func blank(s string) string {
	return strings.Repeat(" ", len(s))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
