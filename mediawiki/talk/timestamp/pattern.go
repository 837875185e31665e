// Package timestamp builds, from a MediaWiki date format string, a regexp
// that recognizes signature timestamps and a parser that maps a match back
// to its date components.
package timestamp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"discourse/mediawiki/talk"
)

// ComponentKind tags one capturing group of a built pattern.
type ComponentKind int

const (
	// KindText marks groups matched but ignored when reconstructing the
	// date, e.g. weekday names.
	KindText ComponentKind = iota
	KindYear
	// KindYearThai is a Buddhist-calendar year (xkY), offset 543 from CE.
	KindYearThai
	KindMonth
	KindMonthName
	KindMonthNameGenitive
	KindMonthNameShort
	KindDay
	KindHour
	KindMinute
)

// Pattern is the compiled recognizer for one date format. Immutable; built
// once per page context and cached by the caller for the session.
type Pattern struct {
	// Format is the MediaWiki date format the pattern was built from.
	Format string
	// Main matches the timestamp without its timezone annotation, one
	// capturing group per component in emission order.
	Main *regexp.Regexp
	// WithTimezone additionally requires the trailing "(UTC)"-style
	// annotation and is what signature matching uses.
	WithTimezone *regexp.Regexp
	// Groups is parallel to the capturing groups of Main.
	Groups []ComponentKind

	ctx *talk.PageContext
}

// Build walks the format string left to right and translates each token into
// a regexp fragment. Unknown tokens degrade to literal text rather than
// failing: a format the builder does not understand should still match
// itself.
func Build(ctx *talk.PageContext) (*Pattern, error) {
	p := &Pattern{Format: ctx.DateFormat, ctx: ctx}

	var sb strings.Builder
	format := ctx.DateFormat
	digits := digitClass(ctx)

	num := func(minLen, maxLen int, kind ComponentKind) {
		if minLen == maxLen {
			fmt.Fprintf(&sb, "(%s{%d})", digits, minLen)
		} else {
			fmt.Fprintf(&sb, "(%s{%d,%d})", digits, minLen, maxLen)
		}
		p.Groups = append(p.Groups, kind)
	}
	names := func(list []string, kind ComponentKind) {
		sb.WriteString("(" + nameAlternation(list) + ")")
		p.Groups = append(p.Groups, kind)
	}

	for i := 0; i < len(format); i++ {
		ch := format[i]
		switch ch {
		case 'x':
			// Two-character tokens come before single-character ones.
			switch {
			case strings.HasPrefix(format[i:], "xkY"):
				num(4, 4, KindYearThai)
				i += 2
			case strings.HasPrefix(format[i:], "xg"):
				names(ctx.MonthNamesGenitive, KindMonthNameGenitive)
				i++
			default:
				sb.WriteString(regexp.QuoteMeta(string(ch)))
			}
		case 'd':
			num(2, 2, KindDay)
		case 'j':
			num(1, 2, KindDay)
		case 'D':
			names(ctx.WeekdayNamesShort, KindText)
		case 'l':
			names(ctx.WeekdayNames, KindText)
		case 'F':
			names(ctx.MonthNames, KindMonthName)
		case 'M':
			names(ctx.MonthNamesShort, KindMonthNameShort)
		case 'n':
			num(1, 2, KindMonth)
		case 'Y':
			num(4, 4, KindYear)
		case 'G':
			num(1, 2, KindHour)
		case 'H':
			num(2, 2, KindHour)
		case 'i':
			num(2, 2, KindMinute)
		case '\\':
			if i+1 < len(format) {
				sb.WriteString(regexp.QuoteMeta(string(format[i+1])))
				i++
			} else {
				sb.WriteString(regexp.QuoteMeta(string(ch)))
			}
		case '"':
			// Quoted literal, copied verbatim. Unterminated quotes degrade
			// to a literal quote character.
			end := strings.IndexByte(format[i+1:], '"')
			if end == -1 {
				sb.WriteString(regexp.QuoteMeta(string(ch)))
			} else {
				sb.WriteString(regexp.QuoteMeta(format[i+1 : i+1+end]))
				i += end + 1
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}

	main, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("timestamp pattern for %q: %w", format, err)
	}
	p.Main = main

	tz := `[ \x{00a0}]\((?:` + regexp.QuoteMeta(ctx.TimezoneAbbr) + `|[A-Z]{1,5}|[+-]` + digits + `{0,4})\)`
	withTZ, err := regexp.Compile(sb.String() + tz)
	if err != nil {
		return nil, fmt.Errorf("timestamp timezone pattern for %q: %w", format, err)
	}
	p.WithTimezone = withTZ

	return p, nil
}

// digitClass returns the character class matching one digit on this wiki.
func digitClass(ctx *talk.PageContext) string {
	if ctx.DigitChars == "" {
		return `\d`
	}
	return `[` + regexp.QuoteMeta(ctx.DigitChars) + `]`
}

// nameAlternation builds an alternation of localized names, longest first so
// a name never shadows another it prefixes.
func nameAlternation(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, n := range sorted {
		if n != "" {
			parts = append(parts, regexp.QuoteMeta(n))
		}
	}
	if len(parts) == 0 {
		// A wiki with no localized names for this token cannot emit it;
		// match nothing rather than everything.
		return `\x{0}`
	}
	return strings.Join(parts, "|")
}
