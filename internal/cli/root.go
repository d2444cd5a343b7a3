// Package cli provides the command-line interface for canfiles.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/version"
)

var (
	// Global flags
	cfgFile     string
	backend     string
	endpoint    string
	downloadDir string
	verbose     bool
	notifyFlag  bool

	// Global logger
	logger *logging.Logger

	// Configuration after flag overrides, set in PersistentPreRunE
	cfg *config.Config

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command. Without a subcommand it opens the
// interactive shell.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "canfiles",
		Short: "canfiles - browse, upload and download files in a remote file store",
		Long: `canfiles ` + version.Version + ` - Built: ` + version.BuildTime + `
Terminal client for a remote file store.

Interactive mode (default):
  A shell that keeps the file list in view and accepts ls, refresh,
  upload, download, rm and status commands.

One-shot mode:
  canfiles ls | upload <path> | download <id> | rm <id>

Uploads register a file's name and size with the store. File bytes are
not transferred.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = loaded

			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			l, err := logging.New(logging.Options{
				Console: cmd.ErrOrStderr(),
				File:    cfg.Logging.File,
				Level:   level,
			})
			if err != nil {
				return fmt.Errorf("invalid logging configuration: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShellCmd(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Remote backend: http, s3, azure or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Remote store URL for the http backend (overrides config)")
	rootCmd.PersistentFlags().StringVar(&downloadDir, "download-dir", "", "Directory downloads are saved to (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&notifyFlag, "notify", false, "Also send desktop notifications")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Long: `Generate shell completion scripts for canfiles.

QUICK TEST (current session only):
  source <(canfiles completion bash)
  source <(canfiles completion zsh)
  canfiles completion fish | source`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// loadConfig reads the INI file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		c.Remote.Backend = backend
	}
	if flags.Changed("endpoint") {
		c.Remote.Endpoint = endpoint
	}
	if flags.Changed("download-dir") {
		c.Downloads.Dir = config.ExpandHome(downloadDir)
	}
	if notifyFlag {
		c.Notifications.Enabled = true
	}
	return c, nil
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C does not block the sender.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	if err != nil && !isReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDevStoreCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetConfig returns the configuration with flag overrides applied.
func GetConfig() *config.Config {
	if cfg == nil {
		cfg = config.New()
	}
	return cfg
}

// GetContext returns the global CLI context with signal handling.
// It is cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
