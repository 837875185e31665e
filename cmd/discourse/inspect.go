package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m-m-f/gowiki"
	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/worker"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <title>...",
	Short: "Fetch pages and print their comment trees",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}

		w := worker.NewWorker(e.client, e.finder, newLogger(), e.trace)
		if err := w.Run(); err != nil {
			return err
		}
		go func() {
			for _, title := range args {
				if !w.Submit(title) {
					return
				}
			}
			w.Close()
		}()

		for p := range w.Trees() {
			if inspectJSON {
				data, err := json.MarshalIndent(p.Tree, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				continue
			}
			printTree(p.Title, p.RevID, p.Tree)
		}
		if err := w.Wait(); err != nil {
			return err
		}
		if verbose {
			return w.PrintMetrics()
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the raw tree as JSON")
}

func printTree(title string, revid int, t *comments.Tree) {
	fmt.Printf("%s (rev %d): %d sections, %d comments\n", title, revid, len(t.Sections), len(t.Comments))
	for _, s := range t.Sections {
		if s.ID == 0 && len(s.Comments) == 0 {
			continue
		}
		head := s.Headline
		if s.ID == 0 {
			head = "(lead)"
		}
		fmt.Printf("\n%s %s\n", strings.Repeat("#", max(s.Level, 1)), head)
		for _, cid := range s.Comments {
			c := t.Comments[cid]
			when := "undated"
			if c.HasTime {
				when = c.Time.Format("2006-01-02 15:04")
			}
			flags := ""
			if c.Unsigned {
				flags += " [unsigned]"
			}
			if c.Closed {
				flags += " [closed]"
			}
			snippet := truncate(plainText(t.Content(c.ID)), 72)
			fmt.Printf("%s%s  %s, %s%s\n%s%s\n",
				strings.Repeat("  ", c.Level), c.Anchor, c.Author, when, flags,
				strings.Repeat("  ", c.Level), snippet)
		}
	}
	for _, p := range t.Problems {
		fmt.Printf("\nproblem: %s\n", p)
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// plainText strips wikitext markup for display, falling back to the raw
// string when the markup does not parse.
func plainText(s string) string {
	art, err := gowiki.ParseArticle("", s, &gowiki.DummyPageGetter{})
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(art.GetText()), " "))
}
