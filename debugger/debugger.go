// Package debugger writes parse traces to a timestamped file under ./logs.
// Separate from the structured log: traces are bulky per-page dumps meant
// for offline comparison of parser runs, not for operators.
package debugger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discourse/mediawiki/talk/comments"
)

type Debugger struct {
	fileName string
	f        *os.File
}

func NewDebugger() (*Debugger, error) {
	nano := time.Now().Unix()

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	fPath := filepath.Join(wd, "logs")
	fName := filepath.Join(wd, "logs", fmt.Sprintf("trace.%d.txt", nano))
	err = os.MkdirAll(fPath, 0700)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fName, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	return &Debugger{
		fileName: fName,
		f:        f,
	}, nil
}

func (s *Debugger) Debug(str string) {
	fmt.Fprintf(s.f, "\nDEBUG : %s", str)
}

func (s *Debugger) Debugf(format string, args ...any) {
	s.Debug(fmt.Sprintf(format, args...))
}

// Tree dumps one parsed page: every section with its comment spans, then
// any parse problems. One run per revision, greppable by title.
func (s *Debugger) Tree(title string, t *comments.Tree) {
	fmt.Fprintf(s.f, "\n\nPAGE : %s : %d sections, %d comments\n", title, len(t.Sections), len(t.Comments))
	for _, sec := range t.Sections {
		fmt.Fprintf(s.f, "  [%d] L%d %q (%d-%d) comments=%d\n",
			sec.ID, sec.Level, sec.Headline, sec.Start, sec.End, len(sec.Comments))
		for _, cid := range sec.Comments {
			c := t.Comments[cid]
			fmt.Fprintf(s.f, "    [%d] %s lvl=%d (%d-%d) %s\n",
				c.ID, c.Anchor, c.Level, c.Start, c.End, commentFlags(c))
		}
	}
	for _, p := range t.Problems {
		fmt.Fprintf(s.f, "  PROBLEM : %s\n", p)
	}
}

func (s *Debugger) Close() error {
	return s.f.Close()
}

func commentFlags(c comments.Comment) string {
	flags := ""
	if c.Unsigned {
		flags += "u"
	}
	if c.Unparseable {
		flags += "?"
	}
	if c.Closed {
		flags += "x"
	}
	if c.InTable {
		flags += "t"
	}
	return flags
}
