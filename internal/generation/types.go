package generation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/generation/stream"
)

type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of POST /v1/generate.
type Request struct {
	SubjectID uuid.UUID       `json:"session_or_job_id"`
	Prompt    string          `json:"prompt"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	ModelHint string          `json:"model_hint,omitempty"`
	Kind      string          `json:"kind"`
	History   []HistoryTurn   `json:"history,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Generator streams one artifact per request. onFrame sees every frame in
// order; the returned error is nil only after a complete frame.
type Generator interface {
	Generate(ctx context.Context, req Request, onFrame func(stream.Frame) error) (stream.Result, error)
}
