package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/transform"
)

var (
	topicHeadline string
	topicMessage  string
	topicUnder    string
	topicTop      bool
	topicSummary  string
)

var topicCmd = &cobra.Command{
	Use:   "topic <title>",
	Short: "Start a new section, or a subsection under an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}

		form := e.form(args[0])
		ctx := context.Background()
		if err := form.Load(ctx); err != nil {
			return err
		}

		op := transform.Operation{
			Kind:          transform.AddSection,
			Headline:      topicHeadline,
			Text:          topicMessage,
			Chronological: topicTop,
		}
		if topicUnder != "" {
			sid, err := resolveSection(form.Tree(), topicUnder)
			if err != nil {
				return err
			}
			op.Kind = transform.AddSubsection
			op.Section = sid
		}

		summary := topicSummary
		if summary == "" {
			summary = fmt.Sprintf("/* %s */ new section", topicHeadline)
		}
		res, err := form.Submit(ctx, op, summary)
		if err != nil {
			return err
		}

		fmt.Printf("saved as revision %d\n", res.NewRevID)
		return nil
	},
}

func init() {
	topicCmd.Flags().StringVar(&topicHeadline, "headline", "", "section headline (required)")
	topicCmd.Flags().StringVarP(&topicMessage, "message", "m", "", "opening comment (required)")
	topicCmd.Flags().StringVar(&topicUnder, "in", "", "parent section headline for a subsection")
	topicCmd.Flags().BoolVar(&topicTop, "top", false, "insert after the lead instead of at page end")
	topicCmd.Flags().StringVar(&topicSummary, "summary", "", "edit summary")
	_ = topicCmd.MarkFlagRequired("headline")
	_ = topicCmd.MarkFlagRequired("message")
}
