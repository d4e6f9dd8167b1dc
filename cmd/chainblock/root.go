package main

import (
	"fmt"
	"maps"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"chainblock/pkg/config"
	"chainblock/pkg/logger"
	"chainblock/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chainblock",
	Short: "Bulk block, mute or unfollow the audience of an account",
	Long: `chainblock runs bulk moderation sessions against the followers, friends,
reactors or search results of a target and applies a verb policy to every
account it finds.

Features:
  - Chain block, mute and unfollow with per-relationship policies
  - Lockpicker for protected accounts and blocklist export
  - Block limiter shared across runs (file or redis backed)
  - Anti-block retrieval through alternate accounts
  - Recurring sessions and a live terminal dashboard`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.NoColor()
		}
		if quiet || cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}
		ui.PrintLogo()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Command failed", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/chainblock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every account as it is handled")

	rootCmd.SetVersionTemplate(`chainblock {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags and extra into the configuration and
// initializes the logger from it.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	persistent := rootCmd.PersistentFlags()
	if persistent.Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	if persistent.Changed("notifications") {
		flags["notifications"] = notifications
	}
	maps.Copy(flags, extra)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if quiet && !persistent.Changed("log-level") {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// configPath is the file defaults and `config init` write to
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.DefaultConfigPath()
}
