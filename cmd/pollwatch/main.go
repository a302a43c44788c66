package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"pollwatch/internal/browser"
	"pollwatch/internal/config"
	"pollwatch/internal/fallback"
	"pollwatch/internal/monitor"
	"pollwatch/internal/oracle"
	"pollwatch/internal/schedule"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pollwatch",
	Short: "pollwatch - automatic PollEverywhere responder",
	Long: `pollwatch watches PollEverywhere pages for a roster of classes and
answers multiple-choice polls as they appear.

Each class inside its scheduled window gets its own browser page. When the
page content changes and a poll is showing, the question is sent to a Gemini
model; confident answers are committed directly, low-confidence ones are
committed as a baseline and raced against a human reply over iMessage.

Run "pollwatch login" once to capture an authenticated session, then
"pollwatch run" to start watching.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd starts the scheduler over the class roster
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch all scheduled classes and answer their polls",
	Long: `Starts the roster scheduler. Every scan interval, classes inside their
time window get a watcher with its own browser page; watchers stop when the
window closes. Type "exit" or send SIGINT to shut down.`,
	RunE: runWatch,
}

// loginCmd captures an authenticated browser session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and save the session",
	Long: `Opens a visible browser at the login page. Complete the login (including
any SSO flow), then press ENTER in this terminal to save the session state
for later runs.`,
	RunE: runLogin,
}

// classesCmd lists the roster
var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the class roster and which classes are active now",
	RunE:  runClasses,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(classesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// classRunnerFunc builds a fresh watcher per class so dedup state and
// mediation never leak across concurrent classes.
type classRunnerFunc func(ctx context.Context, class schedule.Class) error

func (f classRunnerFunc) RunClass(ctx context.Context, class schedule.Class) error {
	return f(ctx, class)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	classes, err := schedule.NewFileStore(cfg.ClassesPath()).Load()
	if err != nil {
		return fmt.Errorf("load class roster: %w", err)
	}
	logger.Info("roster loaded",
		zap.Int("classes", len(classes)),
		zap.Strings("names", schedule.Names(classes)))

	key, err := cfg.ResolveOracleKey()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := oracle.NewClient(ctx, key, cfg.Oracle.Model, cfg.OracleTimeout())
	if err != nil {
		return fmt.Errorf("create oracle client: %w", err)
	}
	notifier := oracle.NewDesktopNotifier()

	var channel fallback.Channel
	if cfg.Fallback.Recipient != "" {
		channel = fallback.NewIMessage(cfg.Fallback.MessagesDB, logger.Named("imessage"))
	} else {
		logger.Info("no fallback recipient configured, low-confidence answers stay on the baseline")
	}

	provider := browser.NewProvider(browser.Config{
		BaseURL:           cfg.BaseURL,
		CookiesPath:       cfg.CookiesPath(),
		Headless:          cfg.Browser.Headless,
		Bin:               cfg.Browser.Bin,
		NavigationTimeout: cfg.NavigationTimeout(),
	}, logger.Named("browser"))
	defer func() { _ = provider.Close() }()

	runner := classRunnerFunc(func(ctx context.Context, class schedule.Class) error {
		watchLogger := logger.Named("watcher")
		pipeline := monitor.NewPipeline(client, notifier, watchLogger)
		mediator := monitor.NewMediator(channel, cfg.Fallback.Recipient,
			cfg.FallbackPollInterval(), cfg.FallbackMaxWait(), watchLogger)
		w := monitor.NewWatcher(provider, pipeline, mediator, cfg.PageInterval(), watchLogger)
		return w.Run(ctx, class)
	})

	scheduler := monitor.NewScheduler(classes, runner,
		cfg.TickInterval(), cfg.JoinTimeout(), logger.Named("scheduler"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		watchStdin(gctx, os.Stdin, stop)
		return nil
	})
	return g.Wait()
}

// watchStdin cancels the run when the user types exit/quit/stop, in any
// casing or padding. Stdin reads cannot be interrupted, so the goroutine is
// simply abandoned on signal shutdown.
func watchStdin(ctx context.Context, in io.Reader, stop func()) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "exit", "quit", "stop":
				logger.Info("shutdown requested from console")
				stop()
				return
			}
		}
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return browser.Login(ctx, cfg.LoginURL, cfg.CookiesPath(), os.Stdin, os.Stdout)
}

func runClasses(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	classes, err := schedule.NewFileStore(cfg.ClassesPath()).Load()
	if err != nil {
		return fmt.Errorf("load class roster: %w", err)
	}

	now := time.Now()
	for _, name := range schedule.Names(classes) {
		class := classes[name]
		status := "idle"
		if class.ActiveAt(now) {
			status = "active"
		}
		fmt.Printf("%-24s %-16s %-20s %s\n", class.Name, class.Section, class.Window(), status)
	}
	return nil
}
