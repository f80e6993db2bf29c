package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// Operation names used as pricing keys.
const (
	OpCourseTurn = "course_turn"
	OpSimulation = "simulation"
	OpVideo      = "video"
)

// Pricing holds the minimum balance each operation requires before a
// generation request is issued. Debits happen elsewhere.
type Pricing struct {
	MinBalance map[string]int64 `yaml:"min_balance"`
}

func DefaultPricing() Pricing {
	return Pricing{MinBalance: map[string]int64{
		OpCourseTurn: 1,
		OpSimulation: 5,
		OpVideo:      20,
	}}
}

// LoadPricing reads GENERATION_PRICING_FILE when set. Keys missing from the
// file keep their defaults.
func LoadPricing(log *logger.Logger) (Pricing, error) {
	p := DefaultPricing()
	path := envutil.String("GENERATION_PRICING_FILE", "")
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pricing file: %w", err)
	}
	return parsePricing(raw, p, log)
}

func parsePricing(raw []byte, base Pricing, log *logger.Logger) (Pricing, error) {
	var file Pricing
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, fmt.Errorf("parse pricing file: %w", err)
	}
	for k, v := range file.MinBalance {
		k = strings.ToLower(strings.TrimSpace(k))
		if v < 0 {
			return base, fmt.Errorf("pricing %s: negative minimum %d", k, v)
		}
		if _, known := base.MinBalance[k]; !known {
			if log != nil {
				log.Warn("Unknown pricing key ignored", "key", k)
			}
			continue
		}
		base.MinBalance[k] = v
	}
	return base, nil
}

// Minimum returns the balance floor for an operation (0 when unpriced).
func (p Pricing) Minimum(op string) int64 {
	return p.MinBalance[op]
}

func OperationForKind(kind generation.JobKind) string {
	switch kind {
	case generation.KindCourseSession:
		return OpCourseTurn
	case generation.KindSimulation:
		return OpSimulation
	case generation.KindVideo:
		return OpVideo
	default:
		return string(kind)
	}
}
