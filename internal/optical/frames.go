package optical

import (
	"context"
	"image"
	"io"
)

// FrameSource yields successive frames for scanning. A single uploaded
// image yields one frame and then io.EOF; a live camera feed yields frames
// until its context is cancelled. Both variants feed the same scan
// pipeline.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

type singleFrame struct {
	img  image.Image
	done bool
}

// SingleFrame wraps one still image as a FrameSource.
func SingleFrame(img image.Image) FrameSource {
	return &singleFrame{img: img}
}

func (s *singleFrame) Next(ctx context.Context) (image.Image, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.img, nil
}

// FrameFunc adapts a capture function, such as a camera grab, to the
// FrameSource interface.
type FrameFunc func(ctx context.Context) (image.Image, error)

func (f FrameFunc) Next(ctx context.Context) (image.Image, error) {
	return f(ctx)
}
