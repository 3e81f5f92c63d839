// README: Date normalizer; weekday names, relative words and free-form dates to ISO calendar dates.
package slots

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"
)

const ISODate = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,

	"понедельник": time.Monday, "пн": time.Monday,
	"вторник": time.Tuesday, "вт": time.Tuesday,
	"среда": time.Wednesday, "среду": time.Wednesday, "ср": time.Wednesday,
	"четверг": time.Thursday, "чт": time.Thursday,
	"пятница": time.Friday, "пятницу": time.Friday, "пт": time.Friday,
	"суббота": time.Saturday, "субботу": time.Saturday, "сб": time.Saturday,
	"воскресенье": time.Sunday, "вс": time.Sunday,
}

// shortWeekdays double as ordinary English words ("we sat down"). They count as a date only
// after a date preposition or as the whole answer.
var (
	shortWeekdays   = wordSet("mon", "tue", "tues", "wed", "thu", "thur", "thurs", "fri", "sat", "sun")
	ambiguousMonths = wordSet("may", "mar")
	weekdayLead     = wordSet("on", "this", "next", "by", "until", "till", "before", "every")
)

var relativeDays = map[string]int{
	"today":       0,
	"tonight":     0,
	"сегодня":     0,
	"tomorrow":    1,
	"завтра":      1,
	"послезавтра": 2,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January, "январь": time.January, "января": time.January,
	"february": time.February, "feb": time.February, "февраль": time.February, "февраля": time.February,
	"march": time.March, "mar": time.March, "март": time.March, "марта": time.March,
	"april": time.April, "apr": time.April, "апрель": time.April, "апреля": time.April,
	"may": time.May, "май": time.May, "мая": time.May,
	"june": time.June, "jun": time.June, "июнь": time.June, "июня": time.June,
	"july": time.July, "jul": time.July, "июль": time.July, "июля": time.July,
	"august": time.August, "aug": time.August, "август": time.August, "августа": time.August,
	"september": time.September, "sep": time.September, "sept": time.September, "сентябрь": time.September, "сентября": time.September,
	"october": time.October, "oct": time.October, "октябрь": time.October, "октября": time.October,
	"november": time.November, "nov": time.November, "ноябрь": time.November, "ноября": time.November,
	"december": time.December, "dec": time.December, "декабрь": time.December, "декабря": time.December,
}

var (
	isoRe     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericRe = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?\b`)
	ordinalRe = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th|го|е|ое)?$`)
)

// DateNormalizer turns date expressions into ISO dates relative to a clock.
type DateNormalizer struct {
	loc *time.Location
	now func() time.Time
	w   *when.Parser
}

// NewDateNormalizer builds a normalizer. nil loc means time.Local, nil now means time.Now.
func NewDateNormalizer(loc *time.Location, now func() time.Time) *DateNormalizer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(ru.All...)
	w.Add(common.All...)
	return &DateNormalizer{loc: loc, now: now, w: w}
}

// Today is the current calendar day at midnight in the normalizer's location.
func (n *DateNormalizer) Today() time.Time {
	t := n.now().In(n.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.loc)
}

// NextWeekday returns the next occurrence of wd strictly after today.
func NextWeekday(today time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

// Normalize returns the ISO date stated in text, or "" when there is none or it lies in the past.
func (n *DateNormalizer) Normalize(text string) string {
	d, _, ok := n.parse(text)
	if !ok {
		return ""
	}
	return d.Format(ISODate)
}

// HasCue reports whether text states any date, even one that cannot be used.
func (n *DateNormalizer) HasCue(text string) bool {
	_, cue, _ := n.parse(text)
	return cue
}

// Validate accepts an ISO date that is today or later.
func (n *DateNormalizer) Validate(iso string) (string, bool) {
	d, err := time.ParseInLocation(ISODate, strings.TrimSpace(iso), n.loc)
	if err != nil || d.Before(n.Today()) {
		return "", false
	}
	return d.Format(ISODate), true
}

func (n *DateNormalizer) parse(text string) (time.Time, bool, bool) {
	today := n.Today()
	toks := tokenize(text)

	for i := range toks {
		if wd, ok := weekdayAt(text, toks, i); ok {
			return NextWeekday(today, wd), true, true
		}
	}

	folded := fold(text)
	if strings.Contains(folded, "day after tomorrow") {
		return today.AddDate(0, 0, 2), true, true
	}
	for _, t := range toks {
		if days, ok := relativeDays[t.word]; ok {
			return today.AddDate(0, 0, days), true, true
		}
	}

	if m := isoRe.FindStringSubmatch(text); m != nil {
		d, ok := n.date(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		return d, true, ok && !d.Before(today)
	}
	if m := numericRe.FindStringSubmatch(text); m != nil {
		day, month := atoi(m[1]), atoi(m[2])
		if month >= 1 && month <= 12 {
			if m[3] != "" {
				year := atoi(m[3])
				if year < 100 {
					year += 2000
				}
				d, ok := n.date(year, month, day)
				return d, true, ok && !d.Before(today)
			}
			d, ok := n.rollYear(today, month, day)
			return d, true, ok
		}
	}
	if month, day, found := dayMonth(toks); found {
		d, ok := n.rollYear(today, int(month), day)
		return d, true, ok
	}

	r, err := n.w.Parse(text, today.Add(12*time.Hour))
	if err != nil || r == nil || vague(r.Text) {
		return time.Time{}, false, false
	}
	t := r.Time.In(n.loc)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.loc)
	// A bare clock time resolves to today and says nothing about the date.
	if d.Equal(today) {
		return time.Time{}, false, false
	}
	return d, true, !d.Before(today)
}

func weekdayAt(text string, toks []token, i int) (time.Weekday, bool) {
	w := toks[i].word
	wd, ok := weekdays[w]
	if !ok {
		return 0, false
	}
	if !shortWeekdays[w] || len(toks) == 1 {
		return wd, true
	}
	if i > 0 && weekdayLead[toks[i-1].word] && !breaksPhrase(text, toks[i-1], toks[i]) {
		return wd, true
	}
	return 0, false
}

// vague reports a match made only of words that are also ordinary English, like "sat" or "may".
func vague(match string) bool {
	for _, t := range tokenize(match) {
		if !shortWeekdays[t.word] && !ambiguousMonths[t.word] && !weekdayLead[t.word] {
			return false
		}
	}
	return true
}

// rollYear resolves a day and month without a year to its next occurrence.
func (n *DateNormalizer) rollYear(today time.Time, month, day int) (time.Time, bool) {
	d, ok := n.date(today.Year(), month, day)
	if !ok {
		return time.Time{}, false
	}
	if d.Before(today) {
		return n.date(today.Year()+1, month, day)
	}
	return d, true
}

func (n *DateNormalizer) date(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, n.loc)
	// time.Date normalizes 31 June into 1 July; reject that.
	if d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// dayMonth finds "5 August", "August 5th" or "5 августа".
func dayMonth(toks []token) (time.Month, int, bool) {
	for i, t := range toks {
		month, ok := months[t.word]
		if !ok {
			continue
		}
		if i > 0 {
			if day, ok := ordinal(toks[i-1].word); ok {
				return month, day, true
			}
		}
		if i+1 < len(toks) {
			if day, ok := ordinal(toks[i+1].word); ok {
				return month, day, true
			}
		}
	}
	return 0, 0, false
}

func ordinal(w string) (int, bool) {
	m := ordinalRe.FindStringSubmatch(w)
	if m == nil {
		return 0, false
	}
	return atoi(m[1]), true
}

func isDateWord(w string) bool {
	if _, ok := weekdays[w]; ok {
		return true
	}
	if _, ok := relativeDays[w]; ok {
		return true
	}
	_, ok := months[w]
	return ok
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
