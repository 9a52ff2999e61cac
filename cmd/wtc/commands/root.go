// Package commands implements the wtc CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/config"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/llm"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform/discord"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/platform/slack"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wtc",
		Short: "what-the-chat - chat history fetching and summarization",
		Long: `wtc collects channel and thread history from Discord or Slack,
resolves user mentions, and uses an LLM to summarize the conversation
or answer questions about it interactively.

Examples:
  wtc fetch --channel general --since 2025-05-01 --summarize
  wtc chat --platform slack --channel proj-x --since-days 7
  wtc setup --platform discord`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newFetchCmd(),
		newChatCmd(),
		newSetupCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// setupLogger builds the process logger. Logs go to stderr so that
// transcripts and summaries on stdout stay clean.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig resolves the configuration for a run.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newConnector builds the platform connector named in the config.
func newConnector(cfg *config.Config, logger *slog.Logger) (platform.Connector, error) {
	switch cfg.Platform {
	case config.PlatformDiscord:
		if cfg.Discord.Token == "" {
			return nil, fmt.Errorf("no Discord token configured (set DISCORD_TOKEN or run 'wtc setup')")
		}
		return discord.New(cfg.Discord, logger)
	case config.PlatformSlack:
		if cfg.Slack.Token == "" {
			return nil, fmt.Errorf("no Slack token configured (set SLACK_TOKEN or run 'wtc setup')")
		}
		return slack.New(cfg.Slack, logger)
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// newBackend builds the LLM backend named in the config.
func newBackend(cfg *config.Config, logger *slog.Logger) (llm.Backend, error) {
	return llm.New(cfg.Model.Source, cfg.Model.Name, cfg.Model.ClientConfig(), logger)
}
