package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"discourse/mediawiki"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.1.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "discourse",
	Short: "Read and write MediaWiki talk-page discussions from the command line",
	Long: `discourse parses talk-page wikitext into comment trees and performs
comment-level operations (reply, edit, delete, new topics) through the
Action API, preserving the rest of the page byte for byte.

Examples:
  discourse inspect "Talk:Go (programming language)"
  discourse reply "Talk:Go" 202001011010_Bob -m "Agreed."
  discourse topic "Talk:Go" --headline "Naming" -m "Should we rename this?"`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("discourse %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("api", mediawiki.ROOT_URL, "Action API endpoint")
	rootCmd.PersistentFlags().String("user", "", "username for tilde-signature attribution in previews")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Bool("trace", false, "write parse traces under ./logs")

	viper.SetEnvPrefix("DISCOURSE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))

	rootCmd.AddCommand(versionCmd, inspectCmd, replyCmd, editCmd, deleteCmd, topicCmd, diffCmd, moveCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
