package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/transform"
)

var (
	editMessage string
	editSummary string
)

var editCmd = &cobra.Command{
	Use:   "edit <title> <comment-anchor>",
	Short: "Rewrite the text of your own comment",
	Long: `Replaces the comment's text between its indentation markers and its
signature. The signature stays untouched unless the new text carries its
own tilde markup.`,
	Args: cobra.ExactArgs(2),
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

		summary := editSummary
		if summary == "" {
			summary = "Edit comment"
		}
		res, err := form.Submit(ctx, transform.Operation{
			Kind:    transform.Edit,
			Comment: target,
			Text:    editMessage,
		}, summary)
		if err != nil {
			return err
		}

		fmt.Printf("saved as revision %d\n", res.NewRevID)
		return nil
	},
}

func init() {
	editCmd.Flags().StringVarP(&editMessage, "message", "m", "", "replacement text (required)")
	editCmd.Flags().StringVar(&editSummary, "summary", "", "edit summary")
	_ = editCmd.MarkFlagRequired("message")
}
