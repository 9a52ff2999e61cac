package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/config"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/dump"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/history"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/resolve"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/summarize"
)

const sinceLayout = "2006-01-02"

// fetchOptions are the flags shared by the fetch and chat commands.
type fetchOptions struct {
	platform  string
	channel   string
	since     string
	sinceDays int
}

func (o *fetchOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.platform, "platform", "p", "", "chat platform: discord or slack (overrides config)")
	cmd.Flags().StringVar(&o.channel, "channel", "", "channel name or ID to fetch")
	cmd.Flags().StringVar(&o.since, "since", "", "fetch messages since this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&o.sinceDays, "since-days", 0, "fetch messages from the last N days (default 7)")
	_ = cmd.MarkFlagRequired("channel")
}

// resolveSince turns the --since/--since-days flags into a cutoff time.
func (o *fetchOptions) resolveSince() (time.Time, error) {
	if o.since != "" && o.sinceDays != 0 {
		return time.Time{}, fmt.Errorf("--since and --since-days are mutually exclusive")
	}
	if o.since != "" {
		t, err := time.Parse(sinceLayout, o.since)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --since date %q (want YYYY-MM-DD)", o.since)
		}
		return t, nil
	}
	days := o.sinceDays
	if days <= 0 {
		days = 7
	}
	return time.Now().AddDate(0, 0, -days).Truncate(24 * time.Hour), nil
}

// fetchResolved runs the full fetch pipeline: connect, collect channel
// and thread history, and resolve mentions to display names.
func fetchResolved(ctx context.Context, cfg *config.Config, opts *fetchOptions, logger *slog.Logger) (*history.ChatHistory, history.UserMapping, time.Time, error) {
	since, err := opts.resolveSince()
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	conn, err := newConnector(cfg, logger)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	fmt.Fprintf(os.Stderr, "Fetching %s history for %q since %s...\n",
		conn.Name(), opts.channel, since.Format(sinceLayout))

	raw, first, err := conn.FetchMessages(ctx, opts.channel, since)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	mapping := conn.UserMapping()
	return resolve.Resolve(raw, mapping), mapping, first, nil
}

// applyOverrides copies command-line overrides onto the loaded config.
func applyOverrides(cfg *config.Config, opts *fetchOptions, modelSource, model string) error {
	if opts.platform != "" {
		cfg.Platform = opts.platform
	}
	if modelSource != "" {
		cfg.Model.Source = modelSource
	}
	if model != "" {
		cfg.Model.Name = model
	}
	return cfg.Validate()
}

// signalContext cancels on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	var (
		summarizeFlag bool
		modelSource   string
		model         string
		dumpDir       string
		dumpHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch channel history and optionally summarize it",
		Long: `Fetches channel and thread history since a given date, resolves user
mentions, and prints the transcript. With --summarize, an LLM summary
sized to the covered time span is generated as well.

Examples:
  wtc fetch --channel general --since-days 3
  wtc fetch --channel general --since 2025-05-01 --summarize
  wtc fetch --channel proj-x --summarize --dump-dir ./dumps --dump-history`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := setupLogger(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyOverrides(cfg, opts, modelSource, model); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			h, mapping, first, err := fetchResolved(ctx, cfg, opts, logger)
			if err != nil {
				return err
			}

			if h.Empty() {
				fmt.Println("No messages found in the requested range.")
				return nil
			}

			var writer *dump.Writer
			if dumpDir != "" {
				writer = dump.NewWriter(dumpDir)
			}

			if writer != nil && dumpHistory {
				path, err := writer.WriteTranscript(cfg.Platform, opts.channel, h, first)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Transcript written to %s\n", path)
			} else {
				fmt.Println(h.Transcript())
			}

			if !summarizeFlag {
				return nil
			}

			backend, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stderr, "Generating summary...")
			summary, err := summarize.New(backend, logger).Generate(ctx, h, mapping)
			if errors.Is(err, summarize.ErrEmptyHistory) {
				fmt.Println("Nothing to summarize.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Println(summary)
			if writer != nil {
				path, err := writer.WriteSummary(cfg.Platform, opts.channel, summary, first)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Summary written to %s\n", path)
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVarP(&summarizeFlag, "summarize", "s", false, "generate an LLM summary of the fetched history")
	cmd.Flags().StringVar(&modelSource, "model-source", "", "LLM backend: local or remote (overrides config)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model name to use (overrides config)")
	cmd.Flags().StringVar(&dumpDir, "dump-dir", "", "directory to write transcript and summary files to")
	cmd.Flags().BoolVar(&dumpHistory, "dump-history", false, "write the transcript to --dump-dir instead of stdout")

	return cmd
}
