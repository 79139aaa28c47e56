// Command linkpilot drives a stealth browser session through network
// automation: connection requests, follows, messages, post likes,
// profile extraction and listing harvests.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvyas/linkpilot/internal/action"
	"github.com/nvyas/linkpilot/internal/batch"
	"github.com/nvyas/linkpilot/internal/browser"
	"github.com/nvyas/linkpilot/internal/config"
	"github.com/nvyas/linkpilot/internal/harvest"
	"github.com/nvyas/linkpilot/internal/logger"
	"github.com/nvyas/linkpilot/internal/queue"
	"github.com/nvyas/linkpilot/internal/session"
	"github.com/nvyas/linkpilot/internal/stealth"
	"github.com/nvyas/linkpilot/internal/storage"
)

const appVersion = "1.0.0"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "linkpilot",
		Short:         "Network automation over a stealth browser session",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				os.Setenv("CONFIG_PATH", configPath)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file")

	root.AddCommand(
		newActionCommand("connect", "Send connection requests", action.KindConnect, true),
		newActionCommand("follow", "Follow people", action.KindFollowPerson, false),
		newActionCommand("follow-company", "Follow company pages", action.KindFollowCompany, false),
		newActionCommand("message", "Send direct messages", action.KindMessage, true),
		newActionCommand("like", "Like recent posts", action.KindLikePosts, false),
		newActionCommand("extract", "Extract profile fields", action.KindExtractProfile, false),
		newHarvestCommand(),
		newMetricsCommand(),
	)
	return root
}

// newActionCommand builds one action-kind subcommand. Targets come from
// the positional argument or a --csv batch file.
func newActionCommand(name, short string, kind action.Kind, withNote bool) *cobra.Command {
	var (
		csvPath         string
		note            string
		followCompanies bool
	)

	cmd := &cobra.Command{
		Use:   name + " [target-url]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := collectRequests(args, csvPath, kind, note)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return fmt.Errorf("no targets: pass a target URL or --csv")
			}
			if kind == action.KindFollowPerson && followCompanies {
				for i := range reqs {
					reqs[i].FollowCompanies = true
				}
			}
			return runActions(cmd.Context(), reqs)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file of target profile links")
	if withNote {
		cmd.Flags().StringVar(&note, "note", "", "invitation note or message body")
	}
	if kind == action.KindFollowPerson {
		cmd.Flags().BoolVar(&followCompanies, "companies", false, "also follow each target's employer companies")
	}
	return cmd
}

func collectRequests(args []string, csvPath string, kind action.Kind, note string) ([]action.Request, error) {
	var reqs []action.Request
	if len(args) == 1 {
		reqs = append(reqs, action.Request{Kind: kind, Target: args[0], Note: note})
	}
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open target CSV: %w", err)
		}
		defer f.Close()
		batchReqs, err := batch.ParseTargets(f, kind, note)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, batchReqs...)
	}
	return reqs, nil
}

// runActions brings up the full stack, enqueues every request and
// prints the outcome tally once the queue drains.
func runActions(ctx context.Context, reqs []action.Request) error {
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.establishSession(ctx); err != nil {
		return err
	}

	machine := action.New(app.sess, app.log,
		action.WithSettle(app.cfg.AutomationSettle()),
		action.WithLikeDelay(app.cfg.LikeDelay()),
		action.WithLikeRounds(app.cfg.Automation.LikeRounds),
		action.WithFollowLedger(app.store, app.cfg.Account.ID),
	)

	tally := make(map[action.Outcome]int)
	q := queue.New(ctx, machine, app.log,
		queue.WithDelay(app.cfg.QueueDelay()),
		queue.WithResultHook(func(res action.Result) {
			tally[res.Outcome]++
			if err := app.store.RecordResult(app.cfg.Account.ID, res); err != nil {
				app.log.Warnw("failed to record result", "id", res.ID, "error", err)
			}
		}),
	)

	for _, req := range reqs {
		if _, ok := q.Enqueue(req); !ok {
			app.log.Warnw("request rejected, queue stopped", "target", req.Target)
		}
	}
	q.Stop()
	q.Wait()

	printTally(len(reqs), tally)
	if tally[action.OutcomeFailed] > 0 {
		return fmt.Errorf("%d of %d requests failed", tally[action.OutcomeFailed], len(reqs))
	}
	return nil
}

func printTally(total int, tally map[action.Outcome]int) {
	fmt.Println()
	color.New(color.Bold).Printf("Processed %d request(s)\n", total)
	color.Green("  completed: %d", tally[action.OutcomeCompleted])
	color.Yellow("  skipped:   %d", tally[action.OutcomeSkipped])
	color.Red("  failed:    %d", tally[action.OutcomeFailed])
}

func newHarvestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [connections|following|followers]",
		Short: "Harvest a network listing into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, ok := harvest.ListingByName(args[0])
			if !ok {
				return fmt.Errorf("unknown listing %q", args[0])
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.establishSession(ctx); err != nil {
				return err
			}

			extractor := extractorFor(listing, app.cfg)
			harvester := harvest.New(app.sess, app.log,
				harvest.WithSettle(app.cfg.HarvestSettle()),
				harvest.WithMaxIterations(app.cfg.Harvest.MaxIterations),
			)

			records, err := harvester.Run(ctx, listing, extractor)
			if err != nil && !errors.Is(err, harvest.ErrTimeout) {
				return err
			}
			if errors.Is(err, harvest.ErrTimeout) {
				color.Yellow("listing did not stabilize; keeping %d partial record(s)", len(records))
			}

			accountID := app.cfg.Account.ID
			if err := app.store.SaveContacts(accountID, listing.Name, records); err != nil {
				return err
			}
			if err := app.store.UpdateMetric(accountID, listing.Name, len(records)); err != nil {
				return err
			}

			color.Green("harvested %d record(s) from %s", len(records), listing.Name)
			return nil
		},
	}
	return cmd
}

func extractorFor(listing harvest.Listing, cfg *config.Config) harvest.Extractor {
	switch listing.Name {
	case harvest.Following.Name:
		return harvest.NewFollowingExtractor(harvest.NewFetcher(cfg.Harvest.AvatarDir))
	case harvest.Followers.Name:
		return harvest.FollowerExtractor
	default:
		return harvest.ConnectionExtractor
	}
}

func newMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show stored listing counts and request tallies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics, err := store.Metrics(cfg.Account.ID)
			if err != nil {
				return err
			}
			tally, err := store.ResultTally(cfg.Account.ID)
			if err != nil {
				return err
			}

			color.New(color.Bold).Println("Listing counts")
			for _, name := range []string{"connections", "following", "followers"} {
				fmt.Printf("  %-12s %d\n", name, metrics[name])
			}
			color.New(color.Bold).Println("Request outcomes")
			for outcome, count := range tally {
				fmt.Printf("  %-12s %d\n", outcome, count)
			}
			return nil
		},
	}
}

// app holds the wired-up stack for browser-backed commands.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store *storage.Store
	sess  browser.Session

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.ToFile, cfg.Logging.FilePath)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}
	a.closers = append(a.closers, func() { store.Close() })

	if err := a.launchBrowser(); err != nil {
		a.close()
		return nil, err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			log.Warnw("shutdown signal received")
			a.close()
			os.Exit(1)
		case <-ctx.Done():
		}
	}()
	return a, nil
}

// launchBrowser starts a local Chrome when one is installed, falling
// back to the managed download, and opens the stealth page all flows
// share.
func (a *app) launchBrowser() error {
	var l *launcher.Launcher
	if path, exists := launcher.LookPath(); exists {
		a.log.Infow("using system browser", "path", path)
		l = launcher.New().Bin(path)
	} else if a.cfg.Browser.BinPath != "" {
		l = launcher.New().Bin(a.cfg.Browser.BinPath)
	} else {
		a.log.Infow("system browser not found, using managed download")
		l = launcher.New()
	}

	userAgent := stealth.RandomUserAgent()
	l = l.Headless(a.cfg.Browser.Headless).
		Devtools(false).
		Leakless(false).
		Set("user-agent", userAgent)

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	rodBrowser := rod.New().ControlURL(url)
	if err := rodBrowser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rodBrowser.Close() })

	page, err := stealth.NewPage(rodBrowser)
	if err != nil {
		return err
	}
	if err := stealth.DisableAutomationFlags(page); err != nil {
		a.log.Warnw("failed to mask automation flags", "error", err)
	}
	if err := stealth.SetRealisticViewport(page); err != nil {
		a.log.Warnw("failed to set viewport", "error", err)
	}

	a.sess = browser.NewRodSession(page)
	a.log.Infow("browser ready", "headless", a.cfg.Browser.Headless, "user_agent", userAgent)
	return nil
}

func (a *app) establishSession(ctx context.Context) error {
	store := session.NewStore(a.cfg.Session.StoreDir)
	manager := session.NewManager(a.sess, store, a.log,
		session.WithSettle(a.cfg.SessionSettle()),
		session.WithLoginWait(a.cfg.LoginWait()),
	)
	outcome, err := manager.Establish(ctx, session.Credentials{
		AccountID: a.cfg.Account.ID,
		Secret:    a.cfg.Account.Secret,
	})
	if err != nil {
		return err
	}
	a.log.Infow("session established", "restored", outcome.Restored, "detail", outcome.Message)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.log.Sync()
}
