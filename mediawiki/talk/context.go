// Package talk holds the per-page configuration the parsing pipeline runs
// against. Every stage takes a *PageContext explicitly; there is no ambient
// script state.
package talk

// PageContext carries the language- and wiki-specific tables needed to
// recognize timestamps, signatures and discussion conventions on one page.
// Built once per page language and treated as immutable afterwards.
type PageContext struct {
	// DateFormat is the MediaWiki date format string for signatures,
	// e.g. "H:i, j F Y" on English wikis.
	DateFormat string

	// DigitChars lists the ten localized digit characters in order 0-9.
	// Empty means Latin digits.
	DigitChars string

	// TimezoneAbbr is the localized abbreviation shown in signature
	// timestamps, "UTC" on most wikis.
	TimezoneAbbr string

	MonthNames         []string
	MonthNamesGenitive []string
	MonthNamesShort    []string
	WeekdayNames       []string
	WeekdayNamesShort  []string

	// UserNamespaces and UserTalkNamespaces list namespace aliases accepted
	// in signature links, e.g. "User", "U" or localized forms.
	UserNamespaces     []string
	UserTalkNamespaces []string
	// ContributionsPages lists "Special:Contributions"-style prefixes used
	// for anonymous signatures.
	ContributionsPages []string

	// IndentationChars are the list markers encoding reply depth.
	IndentationChars string
	// DefaultIndentationChar starts a reply chain under an unindented comment.
	DefaultIndentationChar byte

	// UnsignedTemplates name the {{unsigned|...}} template aliases that
	// attribute comments whose author forgot to sign.
	UnsignedTemplates []string
	// ClosedDiscussionTemplates wrap finished discussions; comments inside
	// keep parsing normally but lose reply/edit affordances.
	ClosedDiscussionTemplates []string
}

// English returns the context for English-language wikis.
func English() *PageContext {
	return &PageContext{
		DateFormat:   "H:i, j F Y",
		TimezoneAbbr: "UTC",
		MonthNames: []string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		MonthNamesGenitive: []string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		MonthNamesShort: []string{
			"Jan", "Feb", "Mar", "Apr", "May", "Jun",
			"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
		},
		WeekdayNames: []string{
			"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
		},
		WeekdayNamesShort: []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},

		UserNamespaces:     []string{"User"},
		UserTalkNamespaces: []string{"User talk"},
		ContributionsPages: []string{"Special:Contributions"},

		IndentationChars:       ":*#",
		DefaultIndentationChar: ':',

		UnsignedTemplates:         []string{"unsigned", "unsignedIP", "unsigned2"},
		ClosedDiscussionTemplates: []string{"closed", "archive top", "atop", "discussion top"},
	}
}

// IsIndentationChar reports whether c is a configured list marker.
func (c *PageContext) IsIndentationChar(ch byte) bool {
	for i := 0; i < len(c.IndentationChars); i++ {
		if c.IndentationChars[i] == ch {
			return true
		}
	}
	return false
}

// Digit maps a localized digit character to its Latin value, or -1.
func (c *PageContext) Digit(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	idx := 0
	for _, d := range c.DigitChars {
		if d == r {
			return idx
		}
		idx++
	}
	return -1
}
