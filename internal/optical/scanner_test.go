package optical

import (
	"context"
	"errors"
	"image"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 10, 10))
}

func TestScannerSingleFrame(t *testing.T) {
	var attempts int32
	scanner := NewScanner(SingleFrame(testFrame()), 5*time.Millisecond)

	err := scanner.Run(context.Background(), func(ctx context.Context, img image.Image) error {
		atomic.AddInt32(&attempts, 1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestScannerAttemptFailureDoesNotAbortPolling(t *testing.T) {
	var captures int32
	source := FrameFunc(func(ctx context.Context) (image.Image, error) {
		if atomic.AddInt32(&captures, 1) > 3 {
			return nil, io.EOF
		}
		return testFrame(), nil
	})

	var attempts int32
	scanner := NewScanner(source, time.Millisecond)

	err := scanner.Run(context.Background(), func(ctx context.Context, img image.Image) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("no code in this frame")
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestScannerCancelStopsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int32
	source := FrameFunc(func(ctx context.Context) (image.Image, error) {
		return testFrame(), nil
	})

	scanner := NewScanner(source, time.Millisecond)
	done := make(chan error, 1)
	go func() {
		done <- scanner.Run(ctx, func(ctx context.Context, img image.Image) error {
			atomic.AddInt32(&attempts, 1)
			return nil
		})
	}()

	// Let a few ticks land, then switch the camera off.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancellation")
	}

	stopped := atomic.LoadInt32(&attempts)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&attempts), "ticks scheduled after cancellation")
}

func TestScannerDefaultInterval(t *testing.T) {
	scanner := NewScanner(SingleFrame(testFrame()), 0)
	assert.Equal(t, defaultPollInterval, scanner.interval)
}
