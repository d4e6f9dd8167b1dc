package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chainblock/pkg/config"
	"chainblock/pkg/ui"
)

var (
	forceInit     bool
	defaultsFlags struct {
		myFollowers  string
		myFollowings string
		verified     string
		bio          string
		skipInactive string
		delay        time.Duration
		recurring    time.Duration
		antiBlock    bool
		quick        bool
	}
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage chainblock configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CHAINBLOCK_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option set to its default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Sensitive values like the bearer token are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

// defaultsCmd represents the config defaults command
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show or change the saved request defaults",
	Long: `Show or change the verb policies and options new sessions start from.

Without flags the current defaults are printed. Running sessions pick up the
new defaults the next time they are rewound.`,
	Example: `  # Mute instead of skipping your own followers
  chainblock config defaults --my-followers Mute

  # Pause a minute between block batches
  chainblock config defaults --delay 1m`,
	Args: cobra.NoArgs,
	RunE: runConfigDefaults,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(defaultsCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")

	f := defaultsCmd.Flags()
	f.StringVar(&defaultsFlags.myFollowers, "my-followers", "", "Skip, Mute, Block or BlockAndUnBlock")
	f.StringVar(&defaultsFlags.myFollowings, "my-followings", "", "Skip, Mute, Block, UnFollow or BlockAndUnBlock")
	f.StringVar(&defaultsFlags.verified, "verified", "", "Skip, Mute or Block")
	f.StringVar(&defaultsFlags.bio, "bio", "", "never, all or smart")
	f.StringVar(&defaultsFlags.skipInactive, "skip-inactive", "", "never, 1y, 2y or 3y")
	f.DurationVar(&defaultsFlags.delay, "delay", 0, "pause between block batches, e.g. 30s")
	f.DurationVar(&defaultsFlags.recurring, "recurring", 0, "recurrence delay, 0 to disable")
	f.BoolVar(&defaultsFlags.antiBlock, "anti-block", false, "enable anti-block")
	f.BoolVar(&defaultsFlags.quick, "quick", false, "enable quick mode")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Run 'chainblock auth login' to store an account")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'chainblock config validate' to check the configuration")
	fmt.Fprintln(cmd.OutOrStdout(), "3. Start a session with 'chainblock run --followers <screen_name>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Twitter.BearerToken = mask(display.Twitter.BearerToken)
	display.Limiter.RedisURL = mask(display.Limiter.RedisURL)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (CHAINBLOCK_*)")
	if path := configPath(); fileExists(path) {
		fmt.Fprintf(out, "3. Configuration file: %s\n", path)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (none found)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if !fileExists(path) {
		return fmt.Errorf("no configuration file found, create one with 'chainblock config init'")
	}
	ui.PrintInfo("Validating configuration", path)

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}

func runConfigDefaults(cmd *cobra.Command, args []string) error {
	store := config.NewFileDefaultsStore(configPath())
	d, err := store.LoadDefaults()
	if err != nil {
		return err
	}

	if applyDefaultsFlags(&d, cmd.Flags().Changed) {
		if err := store.SaveDefaults(d); err != nil {
			return fmt.Errorf("failed to save defaults: %w", err)
		}
		ui.PrintSuccess("Defaults saved to " + configPath())
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// applyDefaultsFlags copies the set flags of `config defaults` into d and
// reports whether any was set.
func applyDefaultsFlags(d *config.Defaults, changed func(string) bool) bool {
	set := false
	strs := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"my-followers", defaultsFlags.myFollowers, &d.MyFollowers},
		{"my-followings", defaultsFlags.myFollowings, &d.MyFollowings},
		{"verified", defaultsFlags.verified, &d.Verified},
		{"bio", defaultsFlags.bio, &d.IncludeUsersInBio},
		{"skip-inactive", defaultsFlags.skipInactive, &d.SkipInactive},
	}
	for _, s := range strs {
		if changed(s.flag) {
			*s.dst = s.value
			set = true
		}
	}

	if changed("delay") {
		d.DelayBetweenBatches = defaultsFlags.delay
		set = true
	}
	if changed("recurring") {
		d.Recurring = defaultsFlags.recurring
		set = true
	}

	if changed("anti-block") {
		d.EnableAntiBlock = defaultsFlags.antiBlock
		set = true
	}
	if changed("quick") {
		d.QuickMode = defaultsFlags.quick
		set = true
	}
	return set
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
