package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/transform"
)

var (
	replyMessage string
	replyChrono  bool
	replySummary string
)

var replyCmd = &cobra.Command{
	Use:   "reply <title> <comment-anchor>",
	Short: "Reply to a comment",
	Args:  cobra.ExactArgs(2),
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

		target, err := resolveComment(form.Tree(), args[1])
		if err != nil {
			return err
		}

		summary := replySummary
		if summary == "" {
			summary = fmt.Sprintf("Reply to %s", form.Tree().Comments[target].Author)
		}
		res, err := form.Submit(ctx, transform.Operation{
			Kind:          transform.Reply,
			Comment:       target,
			Section:       comments.NoID,
			Text:          replyMessage,
			Chronological: replyChrono,
		}, summary)
		if err != nil {
			return err
		}

		fmt.Printf("saved as revision %d\n", res.NewRevID)
		return nil
	},
}

func init() {
	replyCmd.Flags().StringVarP(&replyMessage, "message", "m", "", "reply text (required)")
	replyCmd.Flags().BoolVar(&replyChrono, "after-thread", false, "place the reply after the whole thread")
	replyCmd.Flags().StringVar(&replySummary, "summary", "", "edit summary")
	_ = replyCmd.MarkFlagRequired("message")
}
