package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/canfiles/canfiles/internal/download"
	"github.com/canfiles/canfiles/internal/models"
)

// shellOps is what the shell drives. *client implements it.
type shellOps interface {
	list()
	refresh(ctx context.Context) error
	upload(ctx context.Context, path string) (models.FileRecord, error)
	download(ctx context.Context, arg string) (download.Result, error)
	remove(arg string, confirm confirmFunc) error
	status()
}

const shellHelp = `Commands:
  ls               show the file list
  refresh          fetch the file list again
  upload <path>    register a local file (name and size only)
  download <id>    save a file's content to the download directory
  rm <id>          request deletion (asks for confirmation)
  status           connection and transfer state
  help             this text
  quit             leave the shell`

// runShell reads commands until quit, end of input or ctx ends.
func runShell(ctx context.Context, ops shellOps, next lineSource, out io.Writer) error {
	fmt.Fprintln(out, "Type 'help' for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "canfiles> ")
		line, ok := next()
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch cmd, args := fields[0], fields[1:]; cmd {
		case "ls", "list":
			ops.list()
		case "refresh":
			err = ops.refresh(ctx)
		case "upload":
			if len(args) == 0 {
				fmt.Fprintln(out, "usage: upload <path>")
				continue
			}
			// The path is the rest of the line as typed, inner spaces included.
			path := strings.TrimSpace(strings.TrimSpace(line)[len(cmd):])
			_, err = ops.upload(ctx, path)
		case "download", "get":
			if len(args) != 1 {
				fmt.Fprintln(out, "usage: download <id>")
				continue
			}
			_, err = ops.download(ctx, args[0])
		case "rm", "delete":
			if len(args) != 1 {
				fmt.Fprintln(out, "usage: rm <id>")
				continue
			}
			err = ops.remove(args[0], func(q string) (bool, error) {
				return readConfirm(next, out, q)
			})
		case "status":
			ops.status()
		case "help", "?":
			fmt.Fprintln(out, shellHelp)
		case "quit", "exit", "q":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q, type 'help'\n", cmd)
		}

		if err != nil && !isReported(err) {
			fmt.Fprintf(out, "✗ %s\n", models.Summary(err))
		}
	}
}
