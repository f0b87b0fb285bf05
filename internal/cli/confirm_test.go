package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word", "yes\n", true},
		{"uppercase", "Y\n", true},
		{"no", "n\n", false},
		{"empty declines", "\n", false},
		{"garbage declines", "maybe\n", false},
		{"eof declines", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConfirmer(strings.NewReader(tt.input), &out)

			ok, err := c.Confirm(context.Background(), "Delete member?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "Delete member? [y/N]")
		})
	}
}

func TestConfirmCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never produces input.
	blocked, _ := blockedReader()
	c := NewConfirmer(blocked, &bytes.Buffer{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Confirm(ctx, "Proceed?")
		assert.ErrorIs(t, err, ErrInputCancelled)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Confirm did not return after context cancellation")
	}
}

func blockedReader() (*blockingReader, func()) {
	ch := make(chan struct{})
	return &blockingReader{ch: ch}, func() { close(ch) }
}

type blockingReader struct {
	ch chan struct{}
}

func (r *blockingReader) Read(_ []byte) (int, error) {
	<-r.ch
	return 0, nil
}
