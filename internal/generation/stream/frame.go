package stream

import "encoding/json"

type FrameType string

const (
	FrameStatus   FrameType = "status"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

// Frame is one decoded line of a generation stream.
type Frame struct {
	Type    FrameType       `json:"type"`
	Message string          `json:"message,omitempty"`
	HTML    string          `json:"html,omitempty"`
	URL     string          `json:"url,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

func (f Frame) Terminal() bool {
	return f.Type == FrameComplete || f.Type == FrameError
}

// ArtifactKind names which payload a complete frame carried.
type ArtifactKind string

const (
	ArtifactHTML    ArtifactKind = "html"
	ArtifactURL     ArtifactKind = "url"
	ArtifactContent ArtifactKind = "content"
)

// Artifact returns the payload of a complete frame. html wins over url,
// url over content.
func (f Frame) Artifact() (ArtifactKind, string) {
	switch {
	case f.HTML != "":
		return ArtifactHTML, f.HTML
	case f.URL != "":
		return ArtifactURL, f.URL
	case len(f.Content) > 0:
		return ArtifactContent, string(f.Content)
	default:
		return ArtifactHTML, ""
	}
}
