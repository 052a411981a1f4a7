package main

import (
	"github.com/spf13/cobra"

	"github.com/mcrl2-org/go-aterm/pkg/logging"
)

var (
	logLevel       string
	autoGC         bool
	markDepthLimit int

	rootCmd = &cobra.Command{
		Use:   "aterm",
		Short: "Inspect and drive a shared term store from the command line",
		Long: `aterm is a small operator tool around the shared term store library:
it parses term text, round-trips terms through the binary format, and can
trigger or report on garbage collection against a store built in-process
for the duration of the command.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetLevelName(logLevel)
		},
	}

	parseCmd = &cobra.Command{
		Use:   "parse <term>",
		Short: "Parse a term and print its canonical text form",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}

	encodeCmd = &cobra.Command{
		Use:   "encode <term>",
		Short: "Parse a term and write it to stdout in the binary aterm format",
		Args:  cobra.ExactArgs(1),
		RunE:  runEncode,
	}

	decodeCmd = &cobra.Command{
		Use:   "decode <file>",
		Short: "Read a binary aterm file and print its canonical text form",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecode,
	}

	gcCmd = &cobra.Command{
		Use:   "gc <term>...",
		Short: "Build the given terms, drop them, and report what a collection reclaims",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGC,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&autoGC, "auto-gc", true, "set the store's automatic-collection flag (commands start no background collection policy)")
	rootCmd.PersistentFlags().IntVar(&markDepthLimit, "mark-depth-limit", 0, "abort a collection whose mark stack exceeds this size (0 = unbounded)")

	encodeCmd.Flags().StringP("output", "o", "", "output file (defaults to stdout)")

	rootCmd.AddCommand(parseCmd, encodeCmd, decodeCmd, gcCmd)
}
