package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var moveNoLink bool

var moveCmd = &cobra.Command{
	Use:   "move <title> <section-headline> <target-title>",
	Short: "Move a whole section to another page",
	Long: `Copies the section to the target page first, then removes it here. If
the removal fails after the copy saved, the discussion exists on both
pages and needs manual cleanup; the command says so and refuses to retry.`,
	Args: cobra.ExactArgs(3),
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

		sid, err := resolveSection(form.Tree(), args[1])
		if err != nil {
			return err
		}

		if err := form.Move(ctx, sid, args[2], !moveNoLink); err != nil {
			return err
		}

		fmt.Printf("moved %q to %s\n", args[1], args[2])
		return nil
	},
}

func init() {
	moveCmd.Flags().BoolVar(&moveNoLink, "no-link", false, "do not leave a pointer to the new location")
}
