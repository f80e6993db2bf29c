package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

const defaultMaxLineBytes = 8 << 20

type Options struct {
	// MaxLineBytes bounds a single buffered line. Zero means 8 MiB.
	MaxLineBytes int
	// Logger receives one warning per skipped line. Optional.
	Logger *logger.Logger
	// ChunkSize is the read size used by Consume. Zero means 32 KiB.
	ChunkSize int
}

// Decoder turns arbitrary byte chunks into frames. It buffers the trailing
// partial line between Feed calls and stops producing frames after the first
// terminal frame. A Decoder is not safe for concurrent use.
type Decoder struct {
	opts       Options
	buf        []byte
	line       int
	done       bool
	discarding bool
}

func NewDecoder(opts Options) *Decoder {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	return &Decoder{opts: opts}
}

// Done reports whether a terminal frame has been produced.
func (d *Decoder) Done() bool { return d.done }

// Feed appends chunk and returns every frame completed by it, in order.
// A non-nil error lists lines that were skipped; the returned frames are
// still valid and decoding continues.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	if d.done || len(chunk) == 0 {
		return nil, nil
	}
	d.buf = append(d.buf, chunk...)

	var (
		frames []Frame
		errs   []error
	)
	for !d.done {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		raw := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		d.line++
		if d.discarding {
			d.discarding = false
			continue
		}
		if len(raw) > d.opts.MaxLineBytes {
			errs = append(errs, tooLong(d.line, raw))
			continue
		}
		frame, ok, err := d.decodeLine(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			frames = append(frames, frame)
			d.done = frame.Terminal()
		}
	}

	if d.done {
		d.buf = nil
	} else if len(d.buf) > d.opts.MaxLineBytes {
		errs = append(errs, tooLong(d.line+1, d.buf))
		d.buf = d.buf[:0]
		d.discarding = true
	}
	return frames, errors.Join(errs...)
}

// Flush decodes a trailing line that had no newline. Call it once at EOF.
func (d *Decoder) Flush() ([]Frame, error) {
	if d.done || len(d.buf) == 0 {
		d.buf = nil
		return nil, nil
	}
	raw := d.buf
	d.buf = nil
	d.line++
	if d.discarding {
		d.discarding = false
		return nil, nil
	}
	if len(raw) > d.opts.MaxLineBytes {
		return nil, tooLong(d.line, raw)
	}
	frame, ok, err := d.decodeLine(raw)
	if err != nil || !ok {
		return nil, err
	}
	d.done = frame.Terminal()
	return []Frame{frame}, nil
}

func tooLong(line int, raw []byte) error {
	return &DecodeError{Line: line, Raw: truncate(string(raw[:min(len(raw), 128)]), 64), Err: ErrLineTooLong}
}

func (d *Decoder) decodeLine(raw []byte) (Frame, bool, error) {
	line := strings.TrimSpace(strings.TrimRight(string(raw), "\r"))
	if line == "" || strings.HasPrefix(line, ":") {
		return Frame{}, false, nil
	}
	if strings.HasPrefix(line, "data:") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "" {
			return Frame{}, false, nil
		}
	} else if isSSEField(line) {
		return Frame{}, false, nil
	}

	var frame Frame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return Frame{}, false, &DecodeError{Line: d.line, Raw: truncate(line, 64), Err: err}
	}
	switch frame.Type {
	case FrameStatus, FrameComplete, FrameError:
		return frame, true, nil
	default:
		return Frame{}, false, &DecodeError{Line: d.line, Raw: truncate(line, 64), Err: ErrUnknownFrame}
	}
}

// SSE framing lines other than data: carry nothing for us.
func isSSEField(line string) bool {
	return strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "retry:")
}
