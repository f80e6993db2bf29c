package stream

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

const pendulumStream = ": keepalive\r\n" +
	"data: {\"type\":\"status\",\"message\":\"planning\"}\r\n" +
	"\n" +
	"{\"type\":\"status\",\"message\":\"rendering\"}\n" +
	"data: {\"type\":\"complete\",\"html\":\"<canvas id=\\\"pendulum\\\"></canvas>\"}\n"

func feedAll(t *testing.T, chunks [][]byte) ([]Frame, int) {
	t.Helper()
	dec := NewDecoder(Options{})
	var (
		out  []Frame
		errs int
	)
	for _, c := range chunks {
		frames, err := dec.Feed(c)
		if err != nil {
			errs += countDecodeErrors(err)
		}
		out = append(out, frames...)
	}
	frames, err := dec.Flush()
	if err != nil {
		errs += countDecodeErrors(err)
	}
	return append(out, frames...), errs
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	want, _ := feedAll(t, [][]byte{[]byte(pendulumStream)})
	if len(want) != 3 {
		t.Fatalf("frames: want=3 got=%d (%+v)", len(want), want)
	}
	if want[2].Type != FrameComplete || want[2].HTML != `<canvas id="pendulum"></canvas>` {
		t.Fatalf("final frame: got=%+v", want[2])
	}

	raw := []byte(pendulumStream)
	for split := 1; split < len(raw); split++ {
		got, _ := feedAll(t, [][]byte{raw[:split], raw[split:]})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: want=%+v got=%+v", split, want, got)
		}
	}

	var bytewise [][]byte
	for i := range raw {
		bytewise = append(bytewise, raw[i:i+1])
	}
	got, _ := feedAll(t, bytewise)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("byte-at-a-time: want=%+v got=%+v", want, got)
	}
}

func TestDecoderSkipsMalformedFrames(t *testing.T) {
	in := "{\"type\":\"status\",\"message\":\"a\"}\n" +
		"{not json\n" +
		"{\"type\":\"progress\"}\n" +
		"{\"type\":\"complete\",\"url\":\"https://cdn/x.mp4\"}\n"
	frames, errs := feedAll(t, [][]byte{[]byte(in)})
	if errs != 2 {
		t.Fatalf("decode errors: want=2 got=%d", errs)
	}
	if len(frames) != 2 || frames[1].Type != FrameComplete {
		t.Fatalf("frames: got=%+v", frames)
	}
	if kind, v := frames[1].Artifact(); kind != ArtifactURL || v != "https://cdn/x.mp4" {
		t.Fatalf("artifact: got=%s %q", kind, v)
	}
}

func TestDecoderDecodeErrorType(t *testing.T) {
	dec := NewDecoder(Options{})
	_, err := dec.Feed([]byte("{\"type\":\"bogus\"}\n"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error: want *DecodeError got=%T", err)
	}
	if !errors.Is(err, ErrUnknownFrame) || de.Line != 1 {
		t.Fatalf("decode error: got=%+v", de)
	}
}

func TestDecoderIgnoresBytesAfterTerminal(t *testing.T) {
	dec := NewDecoder(Options{})
	frames, err := dec.Feed([]byte("{\"type\":\"complete\",\"html\":\"A\"}\n{\"type\":\"status\",\"message\":\"late\"}\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 || !dec.Done() {
		t.Fatalf("frames: want 1 terminal got=%+v done=%v", frames, dec.Done())
	}
	frames, err = dec.Feed([]byte("{\"type\":\"complete\",\"html\":\"B\"}\n"))
	if err != nil || len(frames) != 0 {
		t.Fatalf("after terminal: want nothing got=%+v err=%v", frames, err)
	}
}

func TestDecoderFlushParsesTrailingLine(t *testing.T) {
	dec := NewDecoder(Options{})
	frames, _ := dec.Feed([]byte("{\"type\":\"error\",\"message\":\"quota\"}"))
	if len(frames) != 0 {
		t.Fatalf("partial line must stay buffered, got=%+v", frames)
	}
	frames, err := dec.Flush()
	if err != nil || len(frames) != 1 || frames[0].Type != FrameError {
		t.Fatalf("Flush: frames=%+v err=%v", frames, err)
	}
}

func TestDecoderLineTooLong(t *testing.T) {
	dec := NewDecoder(Options{MaxLineBytes: 16})
	_, err := dec.Feed([]byte(strings.Repeat("x", 32)))
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("want ErrLineTooLong got=%v", err)
	}
	frames, err := dec.Feed([]byte("yyyy\n{\"type\":\"complete\",\"html\":\"ok\"}\n"))
	if err != nil {
		t.Fatalf("Feed after overflow: %v", err)
	}
	if len(frames) != 1 || frames[0].HTML != "ok" {
		t.Fatalf("frames: got=%+v", frames)
	}
}

func TestDecoderLineLimitIgnoresChunking(t *testing.T) {
	input := "{\"type\":\"status\",\"message\":\"this message is far too long\"}\n" +
		"{\"type\":\"complete\",\"html\":\"ok\"}\n"
	decode := func(chunks ...string) ([]Frame, int) {
		dec := NewDecoder(Options{MaxLineBytes: 40})
		var (
			out     []Frame
			tooLong int
		)
		for _, c := range chunks {
			frames, err := dec.Feed([]byte(c))
			if errors.Is(err, ErrLineTooLong) {
				tooLong++
			}
			out = append(out, frames...)
		}
		return out, tooLong
	}

	whole, wholeErrs := decode(input)
	if len(whole) != 1 || whole[0].Type != FrameComplete || wholeErrs != 1 {
		t.Fatalf("whole: frames=%+v too_long=%d", whole, wholeErrs)
	}
	for cut := 1; cut < len(input); cut++ {
		got, errs := decode(input[:cut], input[cut:])
		if !reflect.DeepEqual(got, whole) || errs != wholeErrs {
			t.Fatalf("cut at %d: frames=%+v too_long=%d", cut, got, errs)
		}
	}
}

func TestConsumeComplete(t *testing.T) {
	var seen []FrameType
	res, err := Consume(context.Background(), strings.NewReader(pendulumStream), Options{ChunkSize: 7}, func(f Frame) error {
		seen = append(seen, f.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	want := []FrameType{FrameStatus, FrameStatus, FrameComplete}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("order: want=%v got=%v", want, seen)
	}
	if res.StatusFrames != 2 || res.Final.Type != FrameComplete {
		t.Fatalf("result: got=%+v", res)
	}
}

func TestConsumeMalformedThenComplete(t *testing.T) {
	in := "garbage\n{\"type\":\"complete\",\"html\":\"A\"}\n"
	res, err := Consume(context.Background(), strings.NewReader(in), Options{}, nil)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.DecodeErrors != 1 || res.Final.HTML != "A" {
		t.Fatalf("result: got=%+v", res)
	}
}

func TestConsumeErrorFrame(t *testing.T) {
	in := "{\"type\":\"status\",\"message\":\"a\"}\n{\"type\":\"error\",\"message\":\"model overloaded\"}\n"
	_, err := Consume(context.Background(), strings.NewReader(in), Options{}, nil)
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "model overloaded" {
		t.Fatalf("want *RemoteError got=%v", err)
	}
}

func TestConsumeEOFWithoutTerminal(t *testing.T) {
	in := "{\"type\":\"status\",\"message\":\"a\"}\n"
	_, err := Consume(context.Background(), strings.NewReader(in), Options{}, nil)
	if !errors.Is(err, ErrNoTerminalFrame) {
		t.Fatalf("want ErrNoTerminalFrame got=%v", err)
	}
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "{\"type\":\"status\",\"message\":\"a\"}\n"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestConsumeReadFailure(t *testing.T) {
	_, err := Consume(context.Background(), &failingReader{}, Options{}, nil)
	if err == nil || errors.Is(err, ErrNoTerminalFrame) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("want wrapped read error got=%v", err)
	}
}

func TestConsumeCallbackAbort(t *testing.T) {
	stop := errors.New("stop")
	_, err := Consume(context.Background(), strings.NewReader(pendulumStream), Options{}, func(Frame) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("want callback error got=%v", err)
	}
}

func TestConsumeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Consume(ctx, strings.NewReader(pendulumStream), Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled got=%v", err)
	}
}
