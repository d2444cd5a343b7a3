package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// lineSource returns the next input line, or false at end of input.
type lineSource func() (string, bool)

// scannerLines reads lines from in on the caller's goroutine.
func scannerLines(in *bufio.Scanner) lineSource {
	return func() (string, bool) {
		if !in.Scan() {
			return "", false
		}
		return in.Text(), true
	}
}

// contextLines reads lines from in on a separate goroutine so that a
// cancelled ctx ends the read at once.
func contextLines(ctx context.Context, in *bufio.Scanner) lineSource {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			select {
			case lines <- in.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() (string, bool) {
		select {
		case line, ok := <-lines:
			return line, ok
		case <-ctx.Done():
			return "", false
		}
	}
}

// readConfirm reads a y/n answer. An empty answer or end of input is no.
func readConfirm(next lineSource, out io.Writer, question string) (bool, error) {
	for {
		fmt.Fprintf(out, "%s [y/N]: ", question)
		line, ok := next()
		if !ok {
			fmt.Fprintln(out)
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer y or n.")
		}
	}
}

// terminalConfirm asks with a huh form when stdin is a terminal, and falls
// back to reading a line otherwise.
func terminalConfirm(out io.Writer) confirmFunc {
	return func(question string) (bool, error) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return readConfirm(scannerLines(bufio.NewScanner(os.Stdin)), out, question)
		}
		var ok bool
		if err := huh.NewConfirm().
			Title(question).
			Description("The file store decides whether deletion is allowed.").
			Affirmative("Delete").
			Negative("Keep").
			Value(&ok).
			Run(); err != nil {
			return false, fmt.Errorf("confirmation aborted: %w", err)
		}
		return ok, nil
	}
}

// promptPassword reads a password without echo.
func promptPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
