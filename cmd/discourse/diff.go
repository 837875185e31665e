package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/transform"
)

var diffMessage string

var diffCmd = &cobra.Command{
	Use:   "diff <title> <comment-anchor>",
	Short: "Preview a reply as a server-side diff without saving",
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

		body, err := form.ViewChanges(ctx, transform.Operation{
			Kind:    transform.Reply,
			Comment: target,
			Section: comments.NoID,
			Text:    diffMessage,
		})
		if err != nil {
			return err
		}

		fmt.Println(body)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVarP(&diffMessage, "message", "m", "", "reply text to diff (required)")
	_ = diffCmd.MarkFlagRequired("message")
}
