package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/core"
	"github.com/canfiles/canfiles/internal/progress"
	"github.com/canfiles/canfiles/internal/version"
)

// openEngine builds an engine from the global configuration, prompting for
// a proxy password when one is needed and not configured.
func openEngine(cmd *cobra.Command) (*core.Engine, error) {
	c := GetConfig()
	if c.NeedsProxyPassword() {
		pw, err := promptPassword(cmd.ErrOrStderr(), fmt.Sprintf("Proxy password for %s: ", c.Proxy.User))
		if err != nil {
			return nil, err
		}
		c.Proxy.Password = pw
	}
	return core.NewEngine(c, core.WithLogger(GetLogger()))
}

// connect opens an engine for a one-shot command and waits for the first
// file list. The returned cleanup closes both client and engine.
func connect(ctx context.Context, cmd *cobra.Command) (*client, func(), error) {
	engine, err := openEngine(cmd)
	if err != nil {
		return nil, nil, err
	}
	cl := newClient(engine, afero.NewOsFs(), cmd.OutOrStdout(), true, engine.Notifier().IsEnabled())
	cleanup := func() {
		cl.close()
		engine.Close()
	}

	var reporter progress.Reporter = progress.NewNoOpProgress()
	if cl.ui.IsTerminal() {
		reporter = progress.NewCLIProgress(cmd.ErrOrStderr())
	}
	reporter.Start("Connecting to " + describeRemote(engine.Config()))
	if err := engine.Connect(ctx); err != nil {
		reporter.Error(err)
		cleanup()
		return nil, nil, err
	}
	reporter.Finish()
	return cl, cleanup, nil
}

// describeRemote names the configured store for messages.
func describeRemote(c *config.Config) string {
	switch c.Remote.Backend {
	case config.BackendHTTP:
		return c.Remote.Endpoint
	case config.BackendS3:
		return "s3://" + c.S3.Bucket + "/" + c.S3.Prefix
	case config.BackendAzure:
		return c.Azure.ServiceURL + c.Azure.Container
	}
	return c.Remote.Backend + " store"
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell (default)",
		Long: `Open an interactive shell on the file store.

The shell connects in the background; commands that need the store report
"not connected" until the connection is up. The file list is loaded once
connected and refreshed after every accepted upload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShellCmd(cmd)
		},
	}
}

func runShellCmd(cmd *cobra.Command) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()
	cl := newClient(engine, afero.NewOsFs(), out, false, false)
	defer cl.close()

	ctx := cmdContext(cmd)
	engine.Start()
	fmt.Fprintf(out, "canfiles %s - %s\n", version.Version, describeRemote(engine.Config()))
	return runShell(ctx, cl, contextLines(ctx, bufio.NewScanner(cmd.InOrStdin())), out)
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List files in the store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cleanup, err := connect(cmdContext(cmd), cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			cl.list()
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Register a local file with the store",
		Long: `Register a local file with the store.

Only the file's base name and size are sent. The store assigns an id and
the file shows up in the listing; its bytes are not transferred.`,
		Example: "  canfiles upload ./report.pdf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cleanup, err := connect(cmdContext(cmd), cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			_, err = cl.upload(cmdContext(cmd), args[0])
			return err
		},
	}
}

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "download <id>",
		Aliases: []string{"get"},
		Short:   "Save a file's content to the download directory",
		Long: `Retrieve a file's content and save it to the download directory under the
name the store reports. An existing file is never overwritten; the id is
added before the extension instead.`,
		Example: "  canfiles download 7\n  canfiles download 7 --download-dir /tmp",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cleanup, err := connect(cmdContext(cmd), cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			_, err = cl.download(cmdContext(cmd), args[0])
			return err
		},
	}
}

func newRmCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Request deletion of a file",
		Long: `Request deletion of a file after confirmation.

The current file store does not support deletion, so a confirmed request
reports an error and the file stays listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, cleanup, err := connect(cmdContext(cmd), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			confirm := terminalConfirm(cmd.ErrOrStderr())
			if yes {
				confirm = func(string) (bool, error) { return true, nil }
			}
			return cl.remove(args[0], confirm)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// cmdContext returns the command's context, or the signal-aware root
// context when the command was run without one.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return GetContext()
}

// printKV prints an aligned key/value line.
func printKV(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %-16s %s\n", key+":", value)
}
