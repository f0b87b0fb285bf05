package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Confirmer asks yes/no questions on a terminal. Reads respect context
// cancellation so an interrupt during a prompt aborts cleanly.
type Confirmer struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewConfirmer creates a Confirmer reading from input and writing prompts to output.
func NewConfirmer(input io.Reader, output io.Writer) *Confirmer {
	return &Confirmer{
		reader: bufio.NewReader(input),
		writer: output,
	}
}

// Confirm prints the question and waits for a y/n answer. Only "y" and "yes"
// (case-insensitive) count as confirmation; an empty answer declines.
func (c *Confirmer) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(c.writer, "%s [y/N] ", question)

	line, err := c.readLine(ctx)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Confirmer) readLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		value, err := c.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		// The reading goroutine keeps blocking on stdin, but the caller
		// returns immediately on interrupt.
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}
