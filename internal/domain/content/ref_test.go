package content

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseRef(t *testing.T) {
	id := uuid.New()
	ref, err := ParseRef("simulation_post", id.String())
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if ref.Kind != RefSimulationPost || ref.ID != id {
		t.Fatalf("ref: want=%s:%s got=%s", RefSimulationPost, id, ref)
	}
	if _, err := ParseRef("story", id.String()); err == nil {
		t.Fatalf("ParseRef(story): want error")
	}
	if _, err := ParseRef("post", "nope"); err == nil {
		t.Fatalf("ParseRef(bad id): want error")
	}
}

func TestRefInteractable(t *testing.T) {
	want := map[RefKind]bool{RefPost: true, RefSimulationPost: true, RefProject: false, RefSimulation: false}
	for kind, w := range want {
		if got := (Ref{Kind: kind}).Interactable(); got != w {
			t.Fatalf("Interactable(%s): want=%v got=%v", kind, w, got)
		}
	}
}
