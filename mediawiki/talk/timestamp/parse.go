package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Match is one recognized timestamp inside a block of wikitext.
type Match struct {
	// Start and End are byte offsets of the full match (timezone included
	// when matched through WithTimezone).
	Start int
	End   int
	// Time is the reconstructed date, zero when Parsed is false.
	Time time.Time
	// Parsed is false when the groups could not be mapped back to a date
	// (fail-soft: the match still marks a plausible timestamp location).
	Parsed bool
}

// Parse reconstructs (year, month, day, hour, minute) from the capturing
// groups of a Main or WithTimezone match. Group order follows p.Groups.
func (p *Pattern) Parse(groups []string) (time.Time, error) {
	if len(groups) < len(p.Groups) {
		return time.Time{}, fmt.Errorf("timestamp: %d groups for %d components", len(groups), len(p.Groups))
	}
	var year, month, day, hour, minute int
	var haveYear, haveMonth, haveDay bool

	for i, kind := range p.Groups {
		g := groups[i]
		switch kind {
		case KindText:
		case KindYear, KindYearThai:
			n, err := p.number(g)
			if err != nil {
				return time.Time{}, err
			}
			if kind == KindYearThai {
				n -= 543
			}
			year, haveYear = n, true
		case KindMonth:
			n, err := p.number(g)
			if err != nil {
				return time.Time{}, err
			}
			month, haveMonth = n, true
		case KindMonthName:
			n, ok := monthIndex(p.ctx.MonthNames, g)
			if !ok {
				return time.Time{}, fmt.Errorf("timestamp: unknown month %q", g)
			}
			month, haveMonth = n, true
		case KindMonthNameGenitive:
			n, ok := monthIndex(p.ctx.MonthNamesGenitive, g)
			if !ok {
				return time.Time{}, fmt.Errorf("timestamp: unknown month %q", g)
			}
			month, haveMonth = n, true
		case KindMonthNameShort:
			n, ok := monthIndex(p.ctx.MonthNamesShort, g)
			if !ok {
				return time.Time{}, fmt.Errorf("timestamp: unknown month %q", g)
			}
			month, haveMonth = n, true
		case KindDay:
			n, err := p.number(g)
			if err != nil {
				return time.Time{}, err
			}
			day, haveDay = n, true
		case KindHour:
			n, err := p.number(g)
			if err != nil {
				return time.Time{}, err
			}
			hour = n
		case KindMinute:
			n, err := p.number(g)
			if err != nil {
				return time.Time{}, err
			}
			minute = n
		}
	}

	if !haveYear || !haveMonth || !haveDay {
		return time.Time{}, fmt.Errorf("timestamp: format %q carries no full date", p.Format)
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

// LastMatch returns the rightmost timestamp (with timezone) in code. A
// signature block may contain several timestamp-like substrings quoted from
// other comments; only the final one ends the comment.
func (p *Pattern) LastMatch(code string) (Match, bool) {
	all := p.WithTimezone.FindAllStringSubmatchIndex(code, -1)
	if len(all) == 0 {
		return Match{}, false
	}
	return p.matchAt(code, all[len(all)-1]), true
}

// AllMatches returns every non-overlapping timestamp (with timezone) in code.
func (p *Pattern) AllMatches(code string) []Match {
	idxs := p.WithTimezone.FindAllStringSubmatchIndex(code, -1)
	out := make([]Match, 0, len(idxs))
	for _, m := range idxs {
		out = append(out, p.matchAt(code, m))
	}
	return out
}

func (p *Pattern) matchAt(code string, m []int) Match {
	groups := make([]string, len(p.Groups))
	for i := range p.Groups {
		lo, hi := m[2+2*i], m[3+2*i]
		if lo >= 0 {
			groups[i] = code[lo:hi]
		}
	}
	t, err := p.Parse(groups)
	return Match{Start: m[0], End: m[1], Time: t, Parsed: err == nil}
}

// number converts a possibly localized digit string.
func (p *Pattern) number(s string) (int, error) {
	n := 0
	for _, r := range s {
		d := p.ctx.Digit(r)
		if d < 0 {
			return 0, fmt.Errorf("timestamp: bad digit %q in %q", r, s)
		}
		n = n*10 + d
	}
	return n, nil
}

// monthIndex resolves a matched month name to 1..12, case-insensitively.
func monthIndex(names []string, s string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i + 1, true
		}
	}
	return 0, false
}
