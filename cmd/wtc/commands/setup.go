package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pymc-labs/whatthechat/pkg/whatthechat/config"
	"github.com/pymc-labs/whatthechat/pkg/whatthechat/llm"
)

// newSetupCmd creates the `wtc setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Walks through creating the initial config file. Platform tokens and
API keys are stored in the OS keyring when one is available, never in
plaintext.

Examples:
  wtc setup
  wtc setup --path ~/.config/whatthechat/config.yaml`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSetup(path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "wtc.yaml", "where to write the config file")
	return cmd
}

func runSetup(path string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := config.DefaultConfig()
	keyringOK := config.KeyringAvailable()

	fmt.Println()
	fmt.Println("what-the-chat setup")
	fmt.Println("-------------------")
	fmt.Println()

	// Platform.
	fmt.Printf("1. Platform (discord/slack) [%s]: ", cfg.Platform)
	if p := readLine(reader); p != "" {
		cfg.Platform = strings.ToLower(p)
	}
	if cfg.Platform != config.PlatformDiscord && cfg.Platform != config.PlatformSlack {
		return fmt.Errorf("unknown platform %q", cfg.Platform)
	}

	// Platform token.
	fmt.Printf("2. %s bot token (leave empty to configure via env var later): ", cfg.Platform)
	token := readLine(reader)
	if token != "" {
		key, _ := config.SecretKeyFor(cfg.Platform)
		if keyringOK {
			if err := config.StoreSecret(key, token); err != nil {
				return err
			}
			fmt.Println("   Token stored in the OS keyring.")
		} else {
			fmt.Println("   No OS keyring available; keeping the token in the config file.")
			fmt.Println("   Consider using an environment variable instead.")
			switch cfg.Platform {
			case config.PlatformDiscord:
				cfg.Discord.Token = token
			case config.PlatformSlack:
				cfg.Slack.Token = token
			}
		}
	}

	// Model backend.
	fmt.Printf("3. Model source (local/remote) [%s]: ", cfg.Model.Source)
	if s := readLine(reader); s != "" {
		cfg.Model.Source = strings.ToLower(s)
	}
	fmt.Printf("4. Model name [%s]: ", cfg.Model.Name)
	if m := readLine(reader); m != "" {
		cfg.Model.Name = m
	}

	if cfg.Model.Source == llm.SourceRemote {
		fmt.Print("5. API key (leave empty to use OPENAI_API_KEY): ")
		if key := readLine(reader); key != "" {
			if keyringOK {
				if err := config.StoreSecret(config.KeyAPIKey, key); err != nil {
					return err
				}
				fmt.Println("   API key stored in the OS keyring.")
			} else {
				cfg.Model.APIKey = key
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveToFile(cfg, path); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", path)
	fmt.Println("Try: wtc fetch --channel <name> --since-days 7 --summarize")
	return nil
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
