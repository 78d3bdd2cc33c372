// Command msgdump dumps the message tables of every classic event source:
// the event ids and message templates Event Viewer renders events with.
//
// Examples:
//
//	msgdump -o messages.jsonl.gz
//	msgdump --log System --source "Service*" -v
//	msgdump --sources sources.json --image-root /mnt/win --lang any
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/tekert/golang-msgtable/msgtable"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msgdump",
		Short: "Dump the message tables of classic event log sources",
		Long: `msgdump enumerates the classic event sources registered under
HKLM\SYSTEM\CurrentControlSet\Services\EventLog (or read from --sources),
loads every EventMessageFile once and writes its messages as JSON lines,
followed by a summary line.

Every flag can also be set from a MSGDUMP_ environment variable,
MSGDUMP_IMAGE_ROOT for --image-root.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.Verbose)
			_, err = run(cmd.Context(), cfg)
			return err
		},
	}
	bindFlags(cmd.Flags())
	return cmd
}

// setupLogging sends the tool's and the library's logs to stderr.
func setupLogging(verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			ColorOutput:    log.IsTerminal(os.Stderr.Fd()),
			EndWithMessage: true,
			Writer:         os.Stderr,
		},
	}

	msgtable.SetLoggerHandler(log.DefaultLogger.Slog().Handler())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "msgdump:", err)
		stop()
		os.Exit(1)
	}
}
