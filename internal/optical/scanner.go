package optical

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"time"
)

const defaultPollInterval = 2 * time.Second

// Attempt processes one captured frame. Each invocation is an independent,
// stateless attempt; an error reported by one attempt never stops the
// scanner.
type Attempt func(ctx context.Context, img image.Image) error

// Scanner drives periodic scan attempts against a FrameSource. Ticks do
// not overlap: a slow attempt delays the next tick rather than racing it.
type Scanner struct {
	source   FrameSource
	interval time.Duration
}

func NewScanner(source FrameSource, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Scanner{source: source, interval: interval}
}

// Run polls until the source is exhausted or ctx is cancelled. Cancelling
// ctx stops scheduling immediately; an attempt in flight at that moment is
// allowed to finish, and its outcome is discarded. Attempts keep running
// after a success, so the caller decides when to cancel.
func (s *Scanner) Run(ctx context.Context, attempt Attempt) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx, attempt); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("scan attempt failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scanner) tick(ctx context.Context, attempt Attempt) error {
	img, err := s.source.Next(ctx)
	if err != nil {
		return err
	}
	return attempt(ctx, img)
}
