package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chainblock/pkg/auth"
	"chainblock/pkg/config"
	"chainblock/pkg/export"
	"chainblock/pkg/history"
	"chainblock/pkg/limiter"
	"chainblock/pkg/logger"
	"chainblock/pkg/manager"
	"chainblock/pkg/metrics"
	"chainblock/pkg/request"
	"chainblock/pkg/session"
	"chainblock/pkg/twitter"
	"chainblock/pkg/ui"
	"chainblock/pkg/ui/tui"
)

var runOpts runOptions

// runCmd starts one session and follows it until it ends
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a chainblock session",
	Long: `Run a bulk session against one target.

Purposes:
  chainblock     block the target's audience (default)
  unchainblock   unblock it
  chainmute      mute it
  unchainmute    unmute it
  chainunfollow  unfollow it
  lockpicker     block-and-unblock your own followers so they lose access
  export         write your current blocklist to a file

Verb policies default to the values saved with 'chainblock config defaults'.`,
	Example: `  # Block everyone following @someone
  chainblock run --followers someone

  # Mute the retweeters and likers of a tweet
  chainblock run --purpose chainmute --tweet 1234567890

  # Run against a fake platform without touching any account
  chainblock run --dry-run --followers demo --tui

  # Export your blocklist as JSON
  chainblock run --purpose export --export-format json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runOpts.account, "account", "a", "", "use specific stored account")
	f.StringVarP(&runOpts.purpose, "purpose", "p", string(request.ChainBlock), "chainblock, unchainblock, chainmute, unchainmute, chainunfollow, lockpicker or export")

	f.StringVar(&runOpts.followers, "followers", "", "target the followers of this account")
	f.StringVar(&runOpts.friends, "friends", "", "target the accounts this account follows")
	f.StringVar(&runOpts.mutuals, "mutuals", "", "target the mutual followers of this account")
	f.StringVar(&runOpts.tweet, "tweet", "", "target the reactors of this tweet ID")
	f.BoolVar(&runOpts.retweeters, "retweeters", false, "include retweeters of --tweet")
	f.BoolVar(&runOpts.likers, "likers", false, "include likers of --tweet")
	f.BoolVar(&runOpts.mentions, "mentions", false, "include accounts mentioned by --tweet")
	f.BoolVar(&runOpts.quotes, "quotes", false, "include quoters of --tweet")
	f.BoolVar(&runOpts.nonLinked, "non-linked", false, "include @names in the text of --tweet")
	f.StringVar(&runOpts.importFile, "import", "", "target the IDs or names in this file (csv, txt or json)")
	f.StringVar(&runOpts.query, "search", "", "target the authors of tweets matching this query")
	f.StringVar(&runOpts.space, "space", "", "target the participants of this audio space ID")
	f.BoolVar(&runOpts.hosts, "hosts", false, "include hosts of --space")
	f.BoolVar(&runOpts.speakers, "speakers", false, "include speakers of --space")
	f.BoolVar(&runOpts.listeners, "listeners", false, "include listeners of --space")

	f.StringVar(&runOpts.myFollowers, "my-followers", "", "verb for accounts that follow you")
	f.StringVar(&runOpts.myFollowings, "my-followings", "", "verb for accounts you follow")
	f.StringVar(&runOpts.verified, "verified", "", "verb for verified accounts (Skip, Mute, Block)")
	f.StringVar(&runOpts.mutualBlocked, "mutual-blocked", "", "verb for accounts that also block you (Skip, UnBlock)")
	f.StringVar(&runOpts.protectedFollowers, "protected-followers", "", "lockpicker verb (Block, BlockAndUnBlock)")
	f.StringVar(&runOpts.bio, "bio", "", "expand accounts named in bios: never, all or smart")

	f.BoolVar(&runOpts.quick, "quick", false, "stop after the first page-limited batch of accounts")
	f.DurationVar(&runOpts.delay, "delay", 0, "pause between batches of blocks")
	f.StringVar(&runOpts.skipInactive, "skip-inactive", "", "skip accounts inactive for never, 1y, 2y or 3y")
	f.BoolVar(&runOpts.includeTarget, "include-target", false, "act on the target account too")
	f.DurationVar(&runOpts.recurring, "recurring", 0, "run again after this delay until stopped")
	f.BoolVar(&runOpts.antiBlock, "anti-block", false, "read the target through another stored account if it blocks you")

	f.IntVar(&runOpts.maxRunning, "max-running", 0, "maximum concurrently running sessions")
	f.IntVar(&runOpts.concurrency, "concurrency", 0, "concurrent calls per session")
	f.IntVar(&runOpts.requestsPerMinute, "requests-per-minute", 0, "client request pacing")
	f.StringVar(&runOpts.limiterStore, "limiter-store", "", "block limiter store: memory, file or redis")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.StringVar(&runOpts.exportDir, "export-dir", "", "directory for blocklist exports")
	f.StringVar(&runOpts.exportFormat, "export-format", "", "export file format: csv or json")

	f.BoolVar(&runOpts.useTUI, "tui", false, "follow the session in the terminal dashboard")
	f.BoolVar(&runOpts.dryRun, "dry-run", false, "run against an in-memory demo platform")
}

func runRun(cmd *cobra.Command, args []string) error {
	o := runOpts

	flags := map[string]interface{}{
		"max-running":         o.maxRunning,
		"concurrency":         o.concurrency,
		"requests-per-minute": o.requestsPerMinute,
		"limiter-store":       o.limiterStore,
		"metrics-addr":        o.metricsAddr,
		"export-dir":          o.exportDir,
	}
	if o.dryRun && o.limiterStore == "" {
		flags["limiter-store"] = "memory"
	}
	if o.useTUI && !rootCmd.PersistentFlags().Changed("log-level") {
		flags["log-level"] = "error"
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defaults := config.DefaultsStore(config.NewFileDefaultsStore(configPath()))
	if o.dryRun {
		defaults = config.NewMemoryDefaultsStore(cfg.Defaults)
	}
	d, err := defaults.LoadDefaults()
	if err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	acc, err := openActors(ctx, cfg, o)
	if err != nil {
		return err
	}

	req, err := buildRequest(ctx, o, cmd.Flags().Changed, acc.executor, d)
	if err != nil {
		return err
	}

	store, err := limiter.OpenStore(ctx, cfg.Limiter)
	if err != nil {
		return fmt.Errorf("failed to open block limiter store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	scfg := session.ConfigFrom(cfg.Session)
	scfg.Limiter = limiter.New(store, cfg.Limiter.Max, cfg.Limiter.Window)
	scfg.Defaults = defaults
	scfg.Alternates = acc.alternates

	recorder := metrics.Recorder{}
	ends := newOutcomes()
	sinks := session.MultiSink{recorder, ends}
	if !o.dryRun {
		if path, err := history.DefaultPath(); err == nil {
			sinks = append(sinks, history.NewJournal(path, history.DefaultLimit, logger.GetLogger()))
		} else {
			logger.WithError(err).Warn("Session history disabled")
		}
	}

	ctrl := &controller{}
	var board *tui.TUI
	if o.useTUI {
		board = tui.NewTUI(ctrl)
		sinks = append(sinks, board)
	} else if !quiet {
		sinks = append(sinks, ui.NewConsole(os.Stdout, ui.NewNotifier(), cfg.Notifications, verbose))
	}

	mgr := manager.New(manager.Config{
		MaxRunning:    cfg.Session.MaxRunning,
		KeepCompleted: cfg.Session.KeepCompleted,
		Session:       scfg,
		Sink:          sinks,
		Indicator:     recorder,
		Logger:        logger.GetLogger(),
	})
	ctrl.Manager = mgr
	defer mgr.Close()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	var final session.Event
	if board != nil {
		final, err = followDashboard(ctx, mgr, board, req, ends)
	} else {
		final, err = followConsole(ctx, mgr, req, ends)
	}
	if err != nil {
		return err
	}

	if acc.mock != nil && !quiet {
		ui.PrintInfo("Dry run", summarizeActions(acc.mock.Actions()))
	}
	if req.Purpose.Kind == request.Export && final.Kind == session.EventComplete {
		if err := saveExport(cfg, o, mgr, final.Info); err != nil {
			return err
		}
	}
	if final.Kind == session.EventError {
		return final.Err
	}
	return nil
}

// followConsole creates the session and blocks until it ends or ctx is done
func followConsole(ctx context.Context, mgr *manager.Manager, req request.Request, ends *outcomes) (session.Event, error) {
	info, err := mgr.Create(ctx, req)
	if err != nil {
		return session.Event{}, err
	}
	logger.WithField("session_id", info.ID).Info("Session created")

	select {
	case e := <-ends.wait(info.ID):
		return e, nil
	case <-ctx.Done():
	}

	if !quiet {
		ui.PrintWarning("Interrupted, stopping session")
	}
	mgr.Close()
	select {
	case e := <-ends.wait(info.ID):
		return e, nil
	default:
		return session.Event{Kind: session.EventStopped, Reason: session.ReasonCancelled}, nil
	}
}

// followDashboard runs the TUI, creates the session on it and returns once
// the user quits. The program must be running before the first event is
// sent to it.
func followDashboard(ctx context.Context, mgr *manager.Manager, board *tui.TUI, req request.Request, ends *outcomes) (session.Event, error) {
	done := make(chan error, 1)
	go func() { done <- board.Run() }()

	info, err := mgr.Create(ctx, req)
	if err != nil {
		board.Stop()
		<-done
		return session.Event{}, err
	}
	board.Log("info", "Session %s created: %s", info.ID, req)

	select {
	case err = <-done:
	case <-ctx.Done():
		board.Stop()
		err = <-done
	}
	if err != nil {
		return session.Event{}, fmt.Errorf("dashboard failed: %w", err)
	}

	select {
	case e := <-ends.wait(info.ID):
		return e, nil
	default:
	}
	mgr.Close()
	select {
	case e := <-ends.wait(info.ID):
		return e, nil
	default:
		return session.Event{Kind: session.EventStopped, Reason: session.ReasonCancelled}, nil
	}
}

func saveExport(cfg *config.Config, o runOptions, mgr *manager.Manager, info session.Info) error {
	ids, err := mgr.FetchExportResult(info.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch export result: %w", err)
	}

	name := cfg.Export.Format
	if o.exportFormat != "" {
		name = o.exportFormat
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}
	exporter, err := export.NewManager(cfg.Export.Directory, format, logger.GetLogger())
	if err != nil {
		return err
	}
	path, err := exporter.Save(export.Blocklist{
		Executor:   info.Request.Executor.User.ScreenName,
		ExportedAt: time.Now(),
		UserIDs:    ids,
	})
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	if !quiet {
		ui.PrintSuccess(fmt.Sprintf("Exported %d blocked accounts to %s", len(ids), path))
	}
	return nil
}

// controller lets the dashboard drive a manager created after it
type controller struct {
	*manager.Manager
}

// outcomes records the event that ended each session
type outcomes struct {
	mu   sync.Mutex
	ends map[string]chan session.Event
}

func newOutcomes() *outcomes {
	return &outcomes{ends: make(map[string]chan session.Event)}
}

func (o *outcomes) wait(id string) <-chan session.Event {
	return o.channel(id)
}

func (o *outcomes) channel(id string) chan session.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.ends[id]
	if !ok {
		ch = make(chan session.Event, 1)
		o.ends[id] = ch
	}
	return ch
}

func (o *outcomes) HandleEvent(e session.Event) {
	switch e.Kind {
	case session.EventComplete, session.EventStopped, session.EventError:
		select {
		case o.channel(e.Info.ID) <- e:
		default:
		}
	}
}

// actors are the accounts a run can use
type actors struct {
	executor   request.Actor
	alternates func(ctx context.Context) ([]request.Actor, error)
	// mock is set for dry runs
	mock *twitter.MockClient
}

func openActors(ctx context.Context, cfg *config.Config, o runOptions) (*actors, error) {
	if o.dryRun {
		mock := demoPlatform(time.Now())
		me, err := mock.VerifyCredentials(ctx)
		if err != nil {
			return nil, err
		}
		return &actors{executor: request.Actor{User: *me, Client: mock}, mock: mock}, nil
	}

	creds, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if o.account != "" {
		account, err = creds.Retrieve(o.account)
	} else {
		account, err = creds.RetrieveDefault()
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("%w: run 'chainblock auth login' first", err)
		}
		return nil, err
	}

	executor, err := connect(ctx, cfg, account)
	if err != nil {
		return nil, err
	}

	alternates := func(ctx context.Context) ([]request.Actor, error) {
		accounts, err := creds.List()
		if err != nil {
			return nil, err
		}
		var out []request.Actor
		for _, a := range accounts {
			if a.Username == account.Username {
				continue
			}
			actor, err := connect(ctx, cfg, a)
			if err != nil {
				logger.WithError(err).WithField("account", a.Username).Warn("Skipping alternate account")
				continue
			}
			out = append(out, actor)
		}
		return out, nil
	}

	return &actors{executor: executor, alternates: alternates}, nil
}

// connect builds a client for a stored account and verifies it
func connect(ctx context.Context, cfg *config.Config, a *auth.Account) (request.Actor, error) {
	client := twitter.NewHTTPClient(cfg.Twitter, twitter.Credentials{
		BearerToken: cfg.Twitter.BearerToken,
		AuthToken:   a.AuthToken,
		CSRFToken:   a.CSRFToken,
		UserAgent:   a.UserAgent,
	}, logger.GetLogger())

	me, err := client.VerifyCredentials(ctx)
	if err != nil {
		return request.Actor{}, fmt.Errorf("failed to verify @%s: %w", a.Username, err)
	}
	return request.Actor{User: *me, Client: client}, nil
}
