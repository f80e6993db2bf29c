package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Result summarizes a consumed stream.
type Result struct {
	Final        Frame
	StatusFrames int
	DecodeErrors int
	Bytes        int64
}

// Consume reads r until a terminal frame, calling onFrame for every frame in
// arrival order. It returns nil only after a complete frame. An error frame
// yields *RemoteError; EOF without a terminal frame yields ErrNoTerminalFrame.
// An error from onFrame aborts and is returned as is.
func Consume(ctx context.Context, r io.Reader, opts Options, onFrame func(Frame) error) (Result, error) {
	dec := NewDecoder(opts)
	size := opts.ChunkSize
	if size <= 0 {
		size = 32 << 10
	}
	buf := make([]byte, size)
	var res Result

	handle := func(frames []Frame, decodeErr error) (bool, error) {
		if decodeErr != nil {
			res.DecodeErrors += countDecodeErrors(decodeErr)
			if opts.Logger != nil {
				opts.Logger.Warn("Skipped malformed generation frame", "error", decodeErr)
			}
		}
		for _, f := range frames {
			if onFrame != nil {
				if err := onFrame(f); err != nil {
					return true, err
				}
			}
			switch f.Type {
			case FrameStatus:
				res.StatusFrames++
			case FrameComplete:
				res.Final = f
				return true, nil
			case FrameError:
				res.Final = f
				return true, &RemoteError{Message: f.Message}
			}
		}
		return false, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			res.Bytes += int64(n)
			frames, decodeErr := dec.Feed(buf[:n])
			if stop, err := handle(frames, decodeErr); stop {
				return res, err
			}
		}
		if readErr == nil {
			continue
		}
		if !errors.Is(readErr, io.EOF) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, fmt.Errorf("read stream: %w", readErr)
		}
		frames, decodeErr := dec.Flush()
		if stop, err := handle(frames, decodeErr); stop {
			return res, err
		}
		return res, ErrNoTerminalFrame
	}
}

func countDecodeErrors(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
