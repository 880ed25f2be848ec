package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/projlock/config"
	"github.com/ebogdum/projlock/core"
	corelog "github.com/ebogdum/projlock/core/log"
	"github.com/ebogdum/projlock/locks"
	"github.com/ebogdum/projlock/metrics"
)

// Exit codes beyond the child's own
const (
	exitFailure  = 1
	exitUsage    = 64 // EX_USAGE
	exitTempFail = 75 // EX_TEMPFAIL: lock busy
)

var rootCmd = &cobra.Command{
	Use:   "projlock",
	Short: "projlock - named file locks for project directories",
	Long: `projlock serializes work on a shared project directory across
independent processes using named advisory file locks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run NAME -- COMMAND [ARGS...]",
	Short: "Run a command while holding a named lock",
	Long: `Run COMMAND while holding the lock NAME in the project lock directory.
The command's exit code is returned. If the lock cannot be acquired within
the lock timeout the exit code is 75.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLocked,
}

var checkCmd = &cobra.Command{
	Use:   "check NAME",
	Short: "Report whether a named lock is currently free",
	Long:  "Exit with 0 if the lock NAME is free, or 1 if another holder has it.",
	Args:  cobra.ExactArgs(1),
	RunE:  checkLock,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the projlock configuration and display the loaded settings",
	RunE:  validateConfig,
}

var (
	configFilePath string
	lockTimeout    time.Duration
	projectDir     string
	buildDir       string
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")
	flags.DurationVar(&lockTimeout, "lock-timeout", 0, "Override every lock timeout (e.g. 30s, 0 fails immediately when busy)")
	flags.StringVar(&projectDir, "project-dir", "", "Project directory (default from config, or the current directory)")
	flags.StringVar(&buildDir, "build-dir", "", "Build directory holding the locks, relative to the project directory")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd, checkCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitFailure)
	}
}

// loadConfig loads configuration and applies command line overrides
func loadConfig(cmd *cobra.Command) (config.AppConfig, error) {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("lock-timeout") {
		cfg.Lock.Timeout = lockTimeout
		cfg.Lock.TimeoutSet = true
	}
	if projectDir != "" {
		cfg.Project.Dir = projectDir
	}
	if buildDir != "" {
		cfg.Project.BuildDir = buildDir
	}

	return cfg, nil
}

func newEngine(cmd *cobra.Command) (*core.Engine, *zap.Logger, config.AppConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, config.AppConfig{}, err
	}

	logger, err := corelog.New(cfg.Log)
	if err != nil {
		return nil, nil, config.AppConfig{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return core.NewEngine(cfg, core.DefaultCatalog, nil, logger), logger, cfg, nil
}

// runLocked runs the child command under the named lock
func runLocked(cmd *cobra.Command, args []string) error {
	if dash := cmd.ArgsLenAtDash(); dash != -1 && dash != 1 {
		return &exitError{code: exitUsage, err: fmt.Errorf("expected exactly one lock name before --")}
	}
	name, command := args[0], args[1:]

	engine, logger, cfg, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	defer exportMetrics(cfg.Metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("Running command under lock",
		zap.String("lock", name),
		zap.Strings("command", command),
		zap.String("lock_dir", engine.LockPath()))

	err = engine.Lock(ctx, name, nil, func() error {
		child := exec.CommandContext(ctx, command[0], command[1:]...)
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		return child.Run()
	})

	var childExit *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &childExit):
		return &exitError{code: childExit.ExitCode(), err: err}
	case errors.Is(err, locks.ErrTimeout):
		return &exitError{code: exitTempFail, err: fmt.Errorf("resource busy: %w", err)}
	default:
		return err
	}
}

// checkLock reports whether the named lock can be taken right now
func checkLock(cmd *cobra.Command, args []string) error {
	engine, logger, _, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	l, err := engine.Registry().Resolve(args[0])
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	acquired, err := l.TryAcquire()
	if err != nil {
		return err
	}
	if !acquired {
		return &exitError{code: exitFailure, err: fmt.Errorf("lock %q is held", args[0])}
	}

	if err := l.Release(); err != nil {
		logger.Warn("Failed to release lock", zap.String("lock", args[0]), zap.Error(err))
	}
	fmt.Printf("lock %q is free\n", args[0])
	return nil
}

// validateConfig validates the projlock configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("❌ Configuration validation failed: %v\n", err)
		return err
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		fmt.Printf("❌ Configuration validation failed: %v\n", err)
		return err
	}

	engine := core.NewEngine(cfg, nil, nil, nil)

	fmt.Println("✅ Configuration is valid")
	fmt.Printf("Lock Directory: %s\n", engine.LockPath())
	if cfg.Lock.TimeoutSet {
		fmt.Printf("Lock Timeout Override: %s\n", cfg.Lock.Timeout)
	}
	fmt.Printf("Default Lock Timeout: %s\n", cfg.Lock.DefaultTimeout)
	fmt.Printf("Poll Interval: %s\n", cfg.Lock.PollInterval)
	fmt.Printf("Log Level: %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
	if cfg.Metrics.Textfile != "" {
		fmt.Printf("Metrics Textfile: %s\n", cfg.Metrics.Textfile)
	}

	return nil
}

func exportMetrics(cfg config.MetricsConfig, logger *zap.Logger) {
	if cfg.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Textfile); err != nil {
		logger.Warn("Failed to export metrics", zap.Error(err))
	}
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) {
		// Log to stderr since logger may not be working
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}
