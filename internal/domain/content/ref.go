package content

import (
	"fmt"

	"github.com/google/uuid"
)

type RefKind string

const (
	RefPost           RefKind = "post"
	RefProject        RefKind = "project"
	RefSimulation     RefKind = "simulation"
	RefSimulationPost RefKind = "simulation_post"
)

// Ref points at one renderable piece of content. Callers switch on Kind and
// must handle every case.
type Ref struct {
	Kind RefKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func ParseRef(kind, id string) (Ref, error) {
	k := RefKind(kind)
	switch k {
	case RefPost, RefProject, RefSimulation, RefSimulationPost:
	default:
		return Ref{}, fmt.Errorf("unknown content kind %q", kind)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid content id %q: %w", id, err)
	}
	return Ref{Kind: k, ID: parsed}, nil
}

func (r Ref) String() string { return string(r.Kind) + ":" + r.ID.String() }

// Interactable reports whether likes and saves apply to the referenced content.
func (r Ref) Interactable() bool {
	switch r.Kind {
	case RefPost, RefSimulationPost:
		return true
	case RefProject, RefSimulation:
		return false
	default:
		return false
	}
}
