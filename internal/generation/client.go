package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type Options struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a whole generation including streaming. Zero disables it.
	Timeout time.Duration
	// MaxRetries applies only to refusals before the stream opens.
	MaxRetries int

	HTTPClient *http.Client
	Logger     *logger.Logger
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	log        *logger.Logger
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    opts.Timeout,
		maxRetries: maxRetries,
		httpClient: hc,
		log:        log.With("service", "GenerationClient"),
	}, nil
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	return New(Options{
		BaseURL:    envutil.String("GENERATION_BASE_URL", "http://localhost:8090"),
		APIKey:     envutil.String("GENERATION_API_KEY", ""),
		Timeout:    envutil.Seconds("GENERATION_TIMEOUT_SECONDS", 600),
		MaxRetries: envutil.Int("GENERATION_MAX_RETRIES", 0),
		Logger:     log,
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Generate(ctx context.Context, req Request, onFrame func(stream.Frame) error) (stream.Result, error) {
	ctx, span := otel.Tracer("generation").Start(ctx, "generation.Client.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.kind", req.Kind),
		attribute.String("generation.subject_id", req.SubjectID.String()),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := c.open(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stream.Result{}, err
	}
	defer body.Close()

	res, err := stream.Consume(ctx, body, stream.Options{Logger: c.log}, onFrame)
	span.SetAttributes(
		attribute.Int("generation.status_frames", res.StatusFrames),
		attribute.Int("generation.decode_errors", res.DecodeErrors),
		attribute.Int64("generation.bytes", res.Bytes),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	return res, nil
}

func (c *Client) open(ctx context.Context, payload Request) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			lastErr = parseHTTPError(resp.StatusCode, raw)
			var herr *HTTPError
			if errors.As(lastErr, &herr) && !herr.Retryable() {
				return nil, lastErr
			}
		} else {
			return resp.Body, nil
		}

		if attempt < c.maxRetries {
			c.log.Warn("Generator request refused, retrying", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, lastErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
