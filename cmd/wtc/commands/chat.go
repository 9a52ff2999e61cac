package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/chat"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/summarize"
)

func newChatCmd() *cobra.Command {
	opts := &fetchOptions{}
	var (
		modelSource string
		model       string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Fetch channel history and ask questions about it",
		Long: `Fetches channel and thread history since a given date and starts an
interactive session. Free-form input is answered by the LLM against the
transcript; 'summary', 'users', and 'help' are built-in commands.

Examples:
  wtc chat --channel general --since-days 7
  wtc chat --platform slack --channel proj-x --since 2025-05-01`,
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

			h, mapping, _, err := fetchResolved(ctx, cfg, opts, logger)
			if err != nil {
				return err
			}

			if h.Empty() {
				fmt.Println("No messages found in the requested range; nothing to chat about.")
				return nil
			}
			fmt.Fprintf(os.Stderr, "Collected %d messages across %d threads.\n", h.Len(), h.ThreadCount())

			backend, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}

			input, err := chat.NewReadlineInput()
			if err != nil {
				return fmt.Errorf("opening terminal input: %w", err)
			}
			defer input.Close()

			session := chat.New(chat.Config{
				History:    h,
				Mapping:    mapping,
				Summarizer: summarize.New(backend, logger),
				Backend:    backend,
				Input:      input,
				Output:     os.Stdout,
				Logger:     logger,
			})
			return session.Run(ctx)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&modelSource, "model-source", "", "LLM backend: local or remote (overrides config)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model name to use (overrides config)")

	return cmd
}
