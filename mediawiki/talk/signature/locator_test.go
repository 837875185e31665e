package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/timestamp"
)

func newLocator(t *testing.T) *Locator {
	t.Helper()
	ctx := talk.English()
	p, err := timestamp.Build(ctx)
	require.NoError(t, err)
	return NewLocator(ctx, p)
}

func TestLastUserLink(t *testing.T) {
	l := newLocator(t)

	cases := []struct {
		name   string
		code   string
		author string
		anon   bool
	}{
		{
			name:   "plain user link",
			code:   ":Hello there. [[User:Alice|Alice]] ([[User talk:Alice|talk]]) 02:00, 1 January 2009 (UTC)",
			author: "Alice",
		},
		{
			name:   "talk link only",
			code:   "Agreed. [[User talk:Bob_Smith|Bob]] 10:30, 5 March 2021 (UTC)",
			author: "Bob Smith",
		},
		{
			name:   "contributions link",
			code:   "Drive-by note. [[Special:Contributions/192.0.2.17|192.0.2.17]] 10:30, 5 March 2021 (UTC)",
			author: "192.0.2.17",
			anon:   true,
		},
		{
			name:   "underscored namespace",
			code:   "Hm. [[user_talk:Carol|c]] 10:30, 5 March 2021 (UTC)",
			author: "Carol",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, ok := l.Last(tc.code)
			require.True(t, ok)
			assert.Equal(t, tc.author, sig.Author)
			assert.Equal(t, tc.anon, sig.Anonymous)
			assert.False(t, sig.Unparseable)
			assert.True(t, sig.Timestamp.Parsed)
			assert.Equal(t, len(tc.code), sig.End)
		})
	}
}

func TestLastPicksRightmostTimestamp(t *testing.T) {
	l := newLocator(t)
	code := ":I quote: \"done 09:00, 2 May 2019 (UTC)\" earlier. [[User:Dave|D]] 11:00, 3 May 2019 (UTC)"
	sig, ok := l.Last(code)
	require.True(t, ok)
	assert.Equal(t, "Dave", sig.Author)
	assert.Equal(t, time.Date(2019, 5, 3, 11, 0, 0, 0, time.UTC), sig.Timestamp.Time)
}

func TestSignatureStartAtAuthorLink(t *testing.T) {
	l := newLocator(t)
	code := ":Some text here. [[User:Eve|Eve]] 02:00, 1 January 2009 (UTC)"
	sig, ok := l.Last(code)
	require.True(t, ok)
	assert.Equal(t, len(":Some text here. "), sig.Start)
}

func TestUnsignedTemplate(t *testing.T) {
	l := newLocator(t)

	code := "Forgot to sign. 02:00, 1 January 2009 (UTC) {{unsigned|Frank}}"
	sig, ok := l.Last(code)
	require.True(t, ok)
	assert.Equal(t, "Frank", sig.Author)
	assert.True(t, sig.Unsigned)
	assert.False(t, sig.Unparseable)

	// unsigned2 puts the date first.
	code = "Also unsigned. 02:00, 1 January 2009 (UTC) {{unsigned2|01:59, 1 January 2009|Grace}}"
	sig, ok = l.Last(code)
	require.True(t, ok)
	assert.Equal(t, "Grace", sig.Author)
	assert.True(t, sig.Unsigned)
}

func TestUnparseable(t *testing.T) {
	l := newLocator(t)

	code := "A bare timestamp with no author at all. 02:00, 1 January 2009 (UTC)"
	sig, ok := l.Last(code)
	require.True(t, ok)
	assert.True(t, sig.Unparseable)
	assert.Empty(t, sig.Author)

	// A link on an earlier line does not attribute this timestamp.
	code = "[[User:Heidi|H]] wrote elsewhere.\nUnrelated line. 02:00, 1 January 2009 (UTC)"
	sig, ok = l.Last(code)
	require.True(t, ok)
	assert.True(t, sig.Unparseable)

	_, ok = l.Last("no timestamp here")
	assert.False(t, ok)
}
