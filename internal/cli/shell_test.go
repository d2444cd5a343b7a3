package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfiles/canfiles/internal/download"
	"github.com/canfiles/canfiles/internal/models"
)

type fakeOps struct {
	calls     []string
	arg       string
	confirmed []bool
	err       error
}

func (f *fakeOps) list() { f.calls = append(f.calls, "list") }
func (f *fakeOps) refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return f.err
}
func (f *fakeOps) upload(ctx context.Context, path string) (models.FileRecord, error) {
	f.calls = append(f.calls, "upload")
	f.arg = path
	return models.FileRecord{}, f.err
}
func (f *fakeOps) download(ctx context.Context, arg string) (download.Result, error) {
	f.calls = append(f.calls, "download")
	f.arg = arg
	return download.Result{}, f.err
}
func (f *fakeOps) remove(arg string, confirm confirmFunc) error {
	f.calls = append(f.calls, "remove")
	f.arg = arg
	ok, err := confirm("Delete " + arg + "?")
	if err != nil {
		return err
	}
	f.confirmed = append(f.confirmed, ok)
	return f.err
}
func (f *fakeOps) status() { f.calls = append(f.calls, "status") }

func runScript(t *testing.T, ops shellOps, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, runShell(context.Background(), ops, scannerLines(in), &out))
	return out.String()
}

func TestRunShellDispatchesCommands(t *testing.T) {
	f := &fakeOps{}
	runScript(t, f, "ls", "", "refresh", "status", "download 7", "quit", "ls")

	assert.Equal(t, []string{"list", "refresh", "status", "download"}, f.calls, "nothing runs after quit")
	assert.Equal(t, "7", f.arg)
}

func TestRunShellUploadKeepsSpacesInPath(t *testing.T) {
	f := &fakeOps{}
	runScript(t, f, "upload /tmp/my report.pdf")
	assert.Equal(t, "/tmp/my report.pdf", f.arg)

	runScript(t, f, "  upload   a  b\tc.txt ")
	assert.Equal(t, "a  b\tc.txt", f.arg, "inner runs of whitespace survive")
}

func TestRunShellRemoveReadsConfirmation(t *testing.T) {
	f := &fakeOps{}
	out := runScript(t, f, "rm 3", "maybe", "y", "rm 4", "", "rm 5", "no")

	assert.Equal(t, []bool{true, false, false}, f.confirmed)
	assert.Contains(t, out, "Please answer y or n.")
}

func TestRunShellUsageAndUnknown(t *testing.T) {
	f := &fakeOps{}
	out := runScript(t, f, "upload", "download", "download 1 2", "rm", "frobnicate", "help")

	assert.Empty(t, f.calls)
	assert.Contains(t, out, "usage: upload <path>")
	assert.Contains(t, out, "usage: download <id>")
	assert.Contains(t, out, "usage: rm <id>")
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "download <id>")
}

func TestRunShellPrintsUnreportedErrors(t *testing.T) {
	f := &fakeOps{err: models.ErrUploadInFlight}
	out := runScript(t, f, "upload a.txt")
	assert.Contains(t, out, "✗ an upload is already in progress")

	f = &fakeOps{err: reported(errors.New("already shown"))}
	out = runScript(t, f, "upload a.txt")
	assert.NotContains(t, out, "already shown")
}

func TestRunShellStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeOps{}
	var out bytes.Buffer
	in := bufio.NewScanner(strings.NewReader("ls\n"))
	require.NoError(t, runShell(ctx, f, contextLines(ctx, in), &out))
	assert.Empty(t, f.calls)
}

func TestReadConfirmEndOfInputIsNo(t *testing.T) {
	var out bytes.Buffer
	ok, err := readConfirm(scannerLines(bufio.NewScanner(strings.NewReader(""))), &out, "Delete?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Delete? [y/N]: ")
}
