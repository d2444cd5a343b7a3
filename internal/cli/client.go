package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/canfiles/canfiles/internal/core"
	"github.com/canfiles/canfiles/internal/download"
	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/progress"
	"github.com/canfiles/canfiles/internal/transfer"
)

// reportedError marks an error whose outcome line was already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// confirmFunc asks a yes/no question.
type confirmFunc func(question string) (bool, error)

// client runs user commands against an engine and renders the results.
// The shell and the one-shot commands share it.
type client struct {
	engine *core.Engine
	fs     afero.Fs // where upload paths are looked up
	out    io.Writer
	ui     *progress.UploadUI

	// quiet limits background notifications to warnings. Outcomes of the
	// command itself are always printed.
	quiet bool
	// desktop forwards notifications to the desktop notifier.
	desktop bool

	mu  sync.Mutex
	bar *progress.UploadBar

	stopWatch func()
}

func newClient(engine *core.Engine, fs afero.Fs, out io.Writer, quiet, desktop bool) *client {
	c := &client{
		engine:  engine,
		fs:      fs,
		out:     out,
		ui:      progress.NewUploadUI(out),
		quiet:   quiet,
		desktop: desktop,
	}
	c.stopWatch = c.watch()
	return c
}

// close stops rendering events. It does not close the engine.
func (c *client) close() {
	c.stopWatch()
	c.ui.Wait()
}

// watch renders notifications and upload progress until the returned stop
// function is called. Events still buffered at that point are drained.
func (c *client) watch() func() {
	bus := c.engine.Events()
	sub := bus.Subscribe(events.EventNotification, events.EventTransferProgress)

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-stop:
				for {
					select {
					case ev, ok := <-sub:
						if !ok {
							return
						}
						c.handle(ev)
					default:
						return
					}
				}
			case ev, ok := <-sub:
				if !ok {
					return
				}
				c.handle(ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-finished
			bus.Unsubscribe(sub)
		})
	}
}

func (c *client) handle(ev events.Event) {
	switch e := ev.(type) {
	case *events.NotificationEvent:
		if c.desktop {
			c.engine.Notifier().Handle(e)
		}
		if !c.shows(e.Level) {
			return
		}
		fmt.Fprintln(c.ui.Writer(), formatNotification(e))
	case *events.TransferEvent:
		if e.Kind != string(transfer.KindUpload) {
			return
		}
		c.mu.Lock()
		bar := c.bar
		c.mu.Unlock()
		if bar != nil {
			bar.Set(int(e.Progress))
		}
	}
}

// shows reports whether a background notification is printed. Errors are
// returned by the command that caused them and printed there.
func (c *client) shows(level events.Level) bool {
	if level == events.LevelError {
		return false
	}
	if c.quiet {
		return level == events.LevelWarn
	}
	return true
}

func (c *client) setBar(bar *progress.UploadBar) {
	c.mu.Lock()
	c.bar = bar
	c.mu.Unlock()
}

// list prints the cached file list.
func (c *client) list() {
	renderFiles(c.out, c.engine.Cache().Snapshot(), c.engine.Config().Remote.ShareBaseURL)
}

// refresh fetches a fresh list and prints it.
func (c *client) refresh(ctx context.Context) error {
	if err := c.engine.Cache().InvalidateAndRefresh(ctx); err != nil {
		fmt.Fprintf(c.out, "✗ Refresh failed: %s\n", models.Summary(err))
		return reported(err)
	}
	c.list()
	return nil
}

// upload registers the local file at path with the store. Only its base
// name and size are sent.
func (c *client) upload(ctx context.Context, path string) (models.FileRecord, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return models.FileRecord{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	size := models.NewByteCount(uint64(info.Size()))

	bar := c.ui.AddBar(name, size)
	c.setBar(bar)
	defer c.setBar(nil)

	rec, err := c.engine.Uploads().Submit(ctx, name, size)
	if err != nil {
		bar.Fail(err)
		return models.FileRecord{}, reported(err)
	}
	bar.Complete(rec)
	return rec, nil
}

// download retrieves the content of the file with the id in arg.
func (c *client) download(ctx context.Context, arg string) (download.Result, error) {
	id, err := models.ParseFileID(arg)
	if err != nil {
		return download.Result{}, err
	}

	var reporter progress.Reporter = progress.NewNoOpProgress()
	if c.ui.IsTerminal() {
		reporter = progress.NewCLIProgress(c.out)
	}
	reporter.Start(fmt.Sprintf("Downloading file %s", id))

	res, err := c.engine.Downloads().Retrieve(ctx, id)
	if err != nil {
		reporter.Error(err)
		fmt.Fprintf(c.out, "✗ file %s: %s\n", id, models.Summary(err))
		return download.Result{}, reported(err)
	}
	reporter.Finish()
	fmt.Fprintf(c.out, "✓ %s saved to %s (%s, %s)\n", res.Name, res.Location, res.Size.Human(), res.ContentType)
	return res, nil
}

// remove asks for confirmation and then requests deletion of the file with
// the id in arg.
func (c *client) remove(arg string, confirm confirmFunc) error {
	id, err := models.ParseFileID(arg)
	if err != nil {
		return err
	}

	h := c.engine.Deletions()
	h.RequestDelete(id)

	label := "file " + id.String()
	if rec, ok := c.engine.Cache().FindByID(id); ok {
		label = fmt.Sprintf("%s (id %s)", rec.Name, id)
	}
	ok, err := confirm(fmt.Sprintf("Delete %s?", label))
	if err != nil {
		h.Cancel()
		return err
	}
	if !ok {
		h.Cancel()
		fmt.Fprintln(c.out, "Deletion cancelled")
		return nil
	}

	err = h.Confirm()
	fmt.Fprintf(c.out, "✗ %s: %s\n", label, models.Summary(err))
	return reported(err)
}

// status prints connection, list and session state.
func (c *client) status() {
	renderStatus(c.out, statusView{
		Connected: c.engine.Binding().Ready(),
		Files:     c.engine.Cache().Snapshot(),
		Tracker:   c.engine.Tracker(),
		Desktop:   c.engine.Notifier().IsEnabled(),
	})
}
