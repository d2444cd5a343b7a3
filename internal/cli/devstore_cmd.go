package cli

import (
	"fmt"
	"net"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/devstore"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote/memstore"
	"github.com/canfiles/canfiles/internal/util/text"
)

func newDevStoreCmd() *cobra.Command {
	var (
		addr  string
		seeds []string
		quota string
	)

	cmd := &cobra.Command{
		Use:   "dev-store",
		Short: "Run an in-memory file store for development",
		Long: `Serve an in-memory file store over HTTP for local development.

Point the client at it with --backend http --endpoint http://<addr>.
Contents are lost when the process exits.

--seed preloads a file with content. The value is name=content, or
name=@path to read the content from a local file.`,
		Example: `  canfiles dev-store
  canfiles dev-store --addr :9000 --seed notes.txt=hello --seed report.pdf=@./report.pdf
  canfiles dev-store --quota 10MB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := memstore.New()
			if err := seedStore(store, afero.NewOsFs(), seeds); err != nil {
				return err
			}
			if quota != "" {
				limit, err := parseQuota(quota)
				if err != nil {
					return err
				}
				store.SetQuota(limit)
			}

			out := cmd.OutOrStdout()
			srv := devstore.NewServer(store, GetLogger())
			return srv.Serve(cmdContext(cmd), addr, func(a net.Addr) {
				fmt.Fprintf(out, "Development store listening on http://%s (%s)\n", a, text.Count(store.Len(), "file"))
				fmt.Fprintln(out, "Press Ctrl+C to stop.")
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", constants.DevStoreDefaultAddr, "Listen address")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "Preload a file: name=content or name=@path (repeatable)")
	cmd.Flags().StringVar(&quota, "quota", "", "Limit the total registered size, e.g. 10MB")
	return cmd
}

// seedStore adds each name=content or name=@path entry to store.
func seedStore(store *memstore.Store, fs afero.Fs, seeds []string) error {
	for _, seed := range seeds {
		name, value, ok := strings.Cut(seed, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid --seed %q, want name=content or name=@path", seed)
		}
		data := []byte(value)
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			var err error
			if data, err = afero.ReadFile(fs, path); err != nil {
				return fmt.Errorf("--seed %s: %w", name, err)
			}
		}
		store.Seed(name, data)
	}
	return nil
}

// parseQuota accepts human sizes such as "10MB" or "1.5 GiB".
func parseQuota(s string) (models.ByteCount, error) {
	b, err := humanize.ParseBigBytes(s)
	if err != nil {
		return models.ByteCount{}, fmt.Errorf("invalid --quota %q: %w", s, err)
	}
	return models.ByteCountFromBig(b)
}
