package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBasic(t *testing.T) {
	code := "Lead text.\n== Topic ==\nbody\n=== Sub ===\nmore\n== Next ==\nend\n"
	hs := Split(code)
	require.Len(t, hs, 3)

	assert.Equal(t, 2, hs[0].Level)
	assert.Equal(t, "Topic", hs[0].Headline)
	assert.Equal(t, strings.Index(code, "== Topic"), hs[0].Start)
	assert.Equal(t, "body\n", code[hs[0].End:hs[1].Start])

	assert.Equal(t, 3, hs[1].Level)
	assert.Equal(t, "Sub", hs[1].Headline)
	assert.Equal(t, 2, hs[2].Level)
	assert.Equal(t, "Next", hs[2].Headline)
}

func TestSplitNoHeadings(t *testing.T) {
	assert.Empty(t, Split("just a page\nwith no headings\n"))
}

func TestSplitUnevenMarkers(t *testing.T) {
	// Level is the smaller run; the extra equals stay in the headline.
	hs := Split("=== Odd ==\n")
	require.Len(t, hs, 1)
	assert.Equal(t, 2, hs[0].Level)
	assert.Equal(t, "= Odd", hs[0].Headline)

	// A run of bare equals keeps at least one character of text.
	hs = Split("====\n")
	require.Len(t, hs, 1)
	assert.Equal(t, 1, hs[0].Level)
	assert.Equal(t, "==", hs[0].Headline)
}

func TestSplitSkipsMaskedRegions(t *testing.T) {
	code := "== Real ==\n<nowiki>\n== Fake ==\n</nowiki>\n<pre>\n== Also fake ==\n</pre>\n<!--\n== Hidden ==\n-->\n== Real too ==\n"
	hs := Split(code)
	require.Len(t, hs, 2)
	assert.Equal(t, "Real", hs[0].Headline)
	assert.Equal(t, "Real too", hs[1].Headline)
}

func TestSplitKeepsHeadingsInsideTemplates(t *testing.T) {
	// Closed-discussion templates only affect comment state, not section
	// boundaries.
	code := "{{closed|1=\n== Inside ==\nbody\n}}\n"
	hs := Split(code)
	require.Len(t, hs, 1)
	assert.Equal(t, "Inside", hs[0].Headline)
}

func TestSectionCoverageRoundTrip(t *testing.T) {
	// Concatenating the lead and every section span reconstructs the page.
	code := "lead\n== A ==\none\n== B ==\ntwo\n=== B1 ===\nthree\n"
	hs := Split(code)
	require.NotEmpty(t, hs)

	var sb strings.Builder
	sb.WriteString(code[:hs[0].Start])
	for i, h := range hs {
		end := len(code)
		if i+1 < len(hs) {
			end = hs[i+1].Start
		}
		sb.WriteString(code[h.Start:end])
	}
	assert.Equal(t, code, sb.String())
}

func TestSensitiveRangesUnterminated(t *testing.T) {
	code := "text <pre>open forever\n== Gone ==\n"
	rs := SensitiveRanges(code)
	require.Len(t, rs, 1)
	assert.Equal(t, len(code), rs[0].End)
	assert.Empty(t, Split(code))
}

func TestTableRanges(t *testing.T) {
	code := "before\n{|\n|-\n| cell {| nested |} more\n|}\nafter"
	rs := TableRanges(code)
	require.Len(t, rs, 1)
	assert.Equal(t, strings.Index(code, "{|"), rs[0].Start)
	assert.Equal(t, strings.LastIndex(code, "|}")+2, rs[0].End)
}
