package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"chainblock/pkg/auth"
	"chainblock/pkg/config"
	"chainblock/pkg/limiter"
	"chainblock/pkg/ui"
)

var limiterAccount string

// limiterCmd represents the limiter command
var limiterCmd = &cobra.Command{
	Use:   "limiter",
	Short: "Inspect or reset the block limiter",
	Long: `The block limiter caps how many accounts one executor blocks within a
window. Its counts are shared by every run using the same limiter store.`,
}

var limiterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many blocks are left in the current window",
	Args:  cobra.NoArgs,
	RunE:  runLimiterStatus,
}

var limiterResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the blocks counted in the current window",
	Args:  cobra.NoArgs,
	RunE:  runLimiterReset,
}

func init() {
	rootCmd.AddCommand(limiterCmd)
	limiterCmd.AddCommand(limiterStatusCmd)
	limiterCmd.AddCommand(limiterResetCmd)

	limiterCmd.PersistentFlags().StringVarP(&limiterAccount, "account", "a", "", "use specific stored account")
}

// openLimiter loads the configuration and returns the limiter, the stored
// account's ID and a function releasing the store.
func openLimiter(ctx context.Context) (*limiter.Limiter, string, func(), error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, "", nil, err
	}

	id, err := executorID(ctx, cfg, limiterAccount)
	if err != nil {
		return nil, "", nil, err
	}

	store, err := limiter.OpenStore(ctx, cfg.Limiter)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open block limiter store: %w", err)
	}
	release := func() {
		if c, ok := store.(io.Closer); ok {
			c.Close()
		}
	}
	return limiter.New(store, cfg.Limiter.Max, cfg.Limiter.Window), id, release, nil
}

// executorID returns the platform ID of a stored account, verifying the
// account when it was saved without one.
func executorID(ctx context.Context, cfg *config.Config, username string) (string, error) {
	creds, err := auth.NewManager()
	if err != nil {
		return "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if username != "" {
		account, err = creds.Retrieve(username)
	} else {
		account, err = creds.RetrieveDefault()
	}
	if err != nil {
		return "", err
	}
	if account.UserID != "" {
		return account.UserID, nil
	}

	actor, err := connect(ctx, cfg, account)
	if err != nil {
		return "", err
	}
	return actor.User.ID, nil
}

func runLimiterStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lim, id, release, err := openLimiter(ctx)
	if err != nil {
		return err
	}
	defer release()

	count, err := lim.Count(ctx, id)
	if err != nil {
		return err
	}
	remaining, err := lim.Remaining(ctx, id)
	if err != nil {
		return err
	}
	resets, err := lim.ResetsAt(ctx, id)
	if err != nil {
		return err
	}

	ui.PrintInfo("Executor", id)
	ui.PrintInfo("Blocked", fmt.Sprintf("%d/%d", count, lim.Max()))
	ui.PrintInfo("Remaining", fmt.Sprintf("%d", remaining))
	if resets.IsZero() {
		ui.PrintInfo("Window", ui.FormatDuration(lim.Window())+" (not started)")
	} else {
		ui.PrintInfo("Resets in", ui.FormatDuration(time.Until(resets)))
	}
	if remaining == 0 {
		ui.PrintWarning("Block limit reached, destructive sessions will stop immediately")
	}
	return nil
}

func runLimiterReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lim, id, release, err := openLimiter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := lim.Reset(ctx, id); err != nil {
		return fmt.Errorf("failed to reset block limiter: %w", err)
	}
	ui.PrintSuccess("Block limiter reset for " + id)
	return nil
}
