package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chainblock/pkg/auth"
	"chainblock/pkg/ui"
)

var (
	skipVerify bool
	logoutAll  bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored accounts",
	Long: `Manage the browser sessions chainblock acts with.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - CHAINBLOCK_* environment variables (read only)

Several accounts can be stored; the extra ones are used by --anti-block.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store the session cookies of an account",
	Long: `Store the auth_token and ct0 cookies of a logged-in browser session.

The cookies are verified against the platform before they are saved, which
also records the account's screen name and ID. Use --skip-verify to store
them as-is; a username is then required.`,
	Example: `  # Interactive login
  chainblock auth login

  # Store without contacting the platform
  chainblock auth login myname --skip-verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Example: `  # Remove one account
  chainblock auth logout myname

  # Remove every stored account
  chainblock auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked credentials.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store the cookies without verifying them")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var username string
	if len(args) > 0 {
		username = strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	}
	if skipVerify && username == "" {
		return fmt.Errorf("a username is required with --skip-verify")
	}

	reader := bufio.NewReader(os.Stdin)
	out := cmd.OutOrStdout()

	auth.WriteQuickGuide(out)
	fmt.Fprintln(out)

	authToken, err := promptSecret(out, reader, "auth_token cookie value: ", 40)
	if err != nil {
		return err
	}
	csrfToken, err := promptSecret(out, reader, "ct0 cookie value: ", 32)
	if err != nil {
		return err
	}

	fmt.Fprint(out, "User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')

	account := &auth.Account{
		Username:  username,
		AuthToken: authToken,
		CSRFToken: csrfToken,
		UserAgent: strings.TrimSpace(userAgent),
	}

	if !skipVerify {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		actor, err := connect(ctx, cfg, account)
		if err != nil {
			return fmt.Errorf("the cookies were rejected: %w", err)
		}
		if username != "" && !strings.EqualFold(username, actor.User.ScreenName) {
			ui.PrintWarning(fmt.Sprintf("The cookies belong to @%s, not @%s", actor.User.ScreenName, username))
		}
		account.Username = actor.User.ScreenName
		account.UserID = actor.User.ID
	}

	if existing, _ := manager.Retrieve(account.Username); existing != nil {
		fmt.Fprintf(out, "Account '%s' already exists. Update credentials? (y/N): ", account.Username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: @%s", account.Username))
	fmt.Fprintln(out, "\nStart a session with:")
	fmt.Fprintf(out, "  $ chainblock run --followers <screen_name> --account %s\n", account.Username)
	fmt.Fprintln(out, "\nNever share your cookies or credential files!")
	return nil
}

// promptSecret asks for a cookie value until one of at least minLen
// characters is entered. Typing "help" prints the cookie guide.
func promptSecret(out io.Writer, reader *bufio.Reader, prompt string, minLen int) (string, error) {
	for {
		fmt.Fprint(out, prompt)
		value, err := readPassword(reader)
		if err != nil {
			return "", fmt.Errorf("failed to read cookie: %w", err)
		}
		value = strings.Trim(strings.TrimSpace(value), `";`)

		switch {
		case strings.EqualFold(value, "help"):
			fmt.Fprintln(out)
			auth.WriteCookieGuide(out)
		case len(value) < minLen:
			fmt.Fprintf(out, "That does not look right, expected at least %d characters.\n", minLen)
		default:
			return value, nil
		}
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	var username string
	if len(args) > 0 {
		username = strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	} else {
		accounts, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		switch len(accounts) {
		case 0:
			ui.PrintWarning("No stored accounts found")
			return nil
		case 1:
			username = accounts[0].Username
		default:
			return fmt.Errorf("%d accounts are stored, name the one to remove or pass --all", len(accounts))
		}

		reader := bufio.NewReader(os.Stdin)
		fmt.Fprintf(cmd.OutOrStdout(), "Remove account '%s'? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := manager.Delete(username); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'chainblock auth login' to add an account")
		return nil
	}

	out := cmd.OutOrStdout()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%d. @%s", i+1, sanitized.Username)
		if sanitized.UserID != "" {
			fmt.Fprintf(out, " (%s)", sanitized.UserID)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "   auth_token: %s\n", sanitized.AuthToken)
		fmt.Fprintf(out, "   ct0:        %s\n", sanitized.CSRFToken)
		if sanitized.UserAgent != "" {
			fmt.Fprintf(out, "   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Fprintf(out, "   Modified:   %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
