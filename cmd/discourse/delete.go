package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discourse/mediawiki/talk/transform"
)

var deleteSummary string

var deleteCmd = &cobra.Command{
	Use:   "delete <title> <comment-anchor>",
	Short: "Remove a comment that has no replies",
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

		summary := deleteSummary
		if summary == "" {
			summary = "Delete comment"
		}
		res, err := form.Submit(ctx, transform.Operation{
			Kind:    transform.Delete,
			Comment: target,
		}, summary)
		if err != nil {
			return err
		}

		fmt.Printf("saved as revision %d\n", res.NewRevID)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteSummary, "summary", "", "edit summary")
}
