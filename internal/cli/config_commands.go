package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/core"
	"github.com/canfiles/canfiles/internal/util/text"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage canfiles configuration",
		Long: `Configuration management commands for canfiles.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the connection to the file store
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for canfiles.

Asks for the backend and its address, then writes the INI file to the
default location or to --config. Press Enter to keep the value shown in
brackets. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			c := GetConfig()
			if err := initConfig(c, bufio.NewReader(cmd.InOrStdin()), out); err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("configuration not saved: %w", err)
			}
			if err := config.Save(c, path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "\n✓ Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// initConfig asks for the settings a new configuration needs and applies
// the answers to c.
func initConfig(c *config.Config, reader *bufio.Reader, out io.Writer) error {
	ask := func(label, current string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
		input, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if v := strings.TrimSpace(input); v != "" {
			return v, nil
		}
		return current, nil
	}

	fmt.Fprintln(out, "canfiles Configuration Setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	var err error
	if c.Remote.Backend, err = ask("Backend (http, s3, azure, memory)", c.Remote.Backend); err != nil {
		return err
	}
	c.Remote.Backend = strings.ToLower(c.Remote.Backend)

	switch c.Remote.Backend {
	case config.BackendHTTP:
		if c.Remote.Endpoint, err = ask("Store URL", c.Remote.Endpoint); err != nil {
			return err
		}
	case config.BackendS3:
		if c.S3.Bucket, err = ask("Bucket", c.S3.Bucket); err != nil {
			return err
		}
		if c.S3.Region, err = ask("Region", c.S3.Region); err != nil {
			return err
		}
		if c.S3.Prefix, err = ask("Key prefix", c.S3.Prefix); err != nil {
			return err
		}
	case config.BackendAzure:
		if c.Azure.ServiceURL, err = ask("Service URL (with SAS token)", c.Azure.ServiceURL); err != nil {
			return err
		}
		if c.Azure.Container, err = ask("Container", c.Azure.Container); err != nil {
			return err
		}
	}

	if c.Downloads.Dir, err = ask("Download directory", c.Downloads.Dir); err != nil {
		return err
	}
	c.Downloads.Dir = config.ExpandHome(c.Downloads.Dir)
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Values come from the configuration file with command-line flags applied
on top. Secrets are never displayed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			showConfig(cmd.OutOrStdout(), GetConfig(), configPath())
			return nil
		},
	}
}

func showConfig(w io.Writer, c *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Remote:")
	printKV(w, "Backend", c.Remote.Backend)
	switch c.Remote.Backend {
	case config.BackendHTTP:
		printKV(w, "Endpoint", c.Remote.Endpoint)
		printKV(w, "Retries", fmt.Sprint(c.Remote.RetryMax))
	case config.BackendS3:
		printKV(w, "Bucket", c.S3.Bucket)
		printKV(w, "Region", c.S3.Region)
		printKV(w, "Prefix", c.S3.Prefix)
		if c.S3.AccessKeyID != "" {
			printKV(w, "Access key", fmt.Sprintf("<set (%d chars)>", len(c.S3.AccessKeyID)))
		}
	case config.BackendAzure:
		printKV(w, "Service URL", redactQuery(c.Azure.ServiceURL))
		printKV(w, "Container", c.Azure.Container)
	}
	timeout := "none"
	if c.Remote.CallTimeout > 0 {
		timeout = c.Remote.CallTimeout.String()
	}
	printKV(w, "Call timeout", timeout)
	if c.Remote.ShareBaseURL != "" {
		printKV(w, "Share links", c.Remote.ShareBaseURL)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy:")
	printKV(w, "Mode", c.Proxy.Mode)
	if c.Proxy.Host != "" {
		printKV(w, "Host", fmt.Sprintf("%s:%d", c.Proxy.Host, c.Proxy.Port))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Client:")
	printKV(w, "Download dir", c.Downloads.Dir)
	printKV(w, "Notifications", fmt.Sprint(c.Notifications.Enabled))
	printKV(w, "Progress", fmt.Sprintf("ceiling %d%% over %s", c.Progress.Ceiling, c.Progress.Ramp))
	printKV(w, "Log level", c.Logging.Level)
	if c.Logging.File != "" {
		printKV(w, "Log file", c.Logging.File)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "  (file does not exist - using defaults)")
	}
}

// redactQuery hides a SAS token or other query string.
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?<redacted>"
	}
	return u
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the file store",
		Long:  `Connect to the configured store and load the file list once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			return testConnection(cmdContext(cmd), engine, cmd.OutOrStdout(), timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}

func testConnection(ctx context.Context, engine *core.Engine, out io.Writer, timeout time.Duration) error {
	fmt.Fprintf(out, "Testing connection to %s...\n", describeRemote(engine.Config()))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := engine.Connect(ctx); err != nil {
		fmt.Fprintf(out, "✗ Connection failed: %v\n", err)
		return reported(err)
	}
	fmt.Fprintf(out, "✓ Connected in %s, %s listed\n",
		time.Since(start).Round(time.Millisecond), text.Count(engine.Cache().Count(), "file"))
	return nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: canfiles config init")
			}
			return nil
		},
	}
}
