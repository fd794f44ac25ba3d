package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotRunning is returned by EnsureReady when the server does not answer.
var ErrNotRunning = errors.New("ollama is not running, start it with: ollama serve")

const warmUpTimeout = 30 * time.Second

// EnsureReady fails fast when the server is down, pulls model if it is
// missing and then warms it up with a one-word chat. A failed warm-up is
// reported to w and not returned.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return ErrNotRunning
	}

	if !c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		if err := c.PullModel(ctx, model, progressPrinter(w)); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", model)

	warmCtx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()
	if _, err := c.Chat(warmCtx, model, []Message{{Role: "user", Content: "ciao"}}); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", model, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
	return nil
}

// progressPrinter reports status changes and every 10% of a download.
func progressPrinter(w io.Writer) func(PullProgress) {
	var (
		lastStatus string
		lastDecile int64 = -1
	)
	return func(p PullProgress) {
		if p.Total <= 0 {
			if p.Status != lastStatus {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
			lastStatus = p.Status
			return
		}
		decile := p.Completed * 10 / p.Total
		if p.Status != lastStatus || decile != lastDecile {
			fmt.Fprintf(w, "  %s %d%%\n", p.Status, decile*10)
		}
		lastStatus, lastDecile = p.Status, decile
	}
}
