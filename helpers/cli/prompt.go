package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

// MainLoop calls exec for every input line until EOF (ctx is checked between lines).
// Interactive prompt with completion when stdin is a terminal,
// otherwise lines are read from stdin.
func MainLoop(ctx context.Context, tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest) error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		if complete == nil {
			complete = func(prompt.Document) []prompt.Suggest { return nil }
		}
		prompt.New(exec, complete, prompt.OptionPrefix(tag+"> ")).Run()
		return ctx.Err()
	}
	return ReadLines(ctx, os.Stdin, exec)
}

// ReadLines calls exec for each non-empty trimmed line.
func ReadLines(ctx context.Context, r io.Reader, exec func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return errors.Annotate(scanner.Err(), "read lines")
}
