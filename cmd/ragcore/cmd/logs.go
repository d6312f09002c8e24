package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relevant-segments/ragcore/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var source string
	var level string
	var filePath string
	var tail int
	var noColor bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View server logs",
		Long: `View and follow ragcore server logs.

Logs are written to ~/.ragcore/logs/ when the server runs with --debug
(MCP mode always logs to file, since stdout belongs to the protocol).`,
		Example: `  # Tail the server log
  ragcore logs

  # Follow new entries
  ragcore logs -f

  # Only warnings and errors from the HTTP access log
  ragcore logs --source http --level warn`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := logging.FindLogFileBySource(logging.ParseLogSource(source), filePath)
			if err != nil {
				return err
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:      level,
				NoColor:    noColor,
				ShowSource: len(paths) > 1,
			}, cmd.OutOrStdout())

			entries, err := viewer.TailMultiple(paths, tail)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if follow {
				ch := make(chan logging.LogEntry, 64)
				go func() {
					for entry := range ch {
						viewer.Print([]logging.LogEntry{entry})
					}
				}()
				return viewer.FollowMultiple(cmd.Context(), paths, ch)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new log entries")
	cmd.Flags().StringVar(&source, "source", "server", "Log source: server, http, all")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&filePath, "file", "", "Explicit log file path")
	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "Number of trailing entries to show")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
