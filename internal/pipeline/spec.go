package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// TotalWeight is the sum every valid Spec's stage weights must reach.
const TotalWeight = 100

// ErrInvalidSpec is returned when a stage spec is malformed.
var ErrInvalidSpec = errors.New("invalid stage spec")

//nolint:gochecknoglobals // validator caches struct metadata; one instance per process
var validate = validator.New(validator.WithRequiredStructEnabled())

// StageSpec names one processing stage and its share of overall progress.
type StageSpec struct {
	Name   string `toml:"name" validate:"required,max=64"`
	Weight int    `toml:"weight" validate:"min=1,max=100"`

	// DurationMS is only read by simulated stages.
	DurationMS int `toml:"duration_ms" validate:"min=0"`
}

// Duration returns DurationMS as a time.Duration.
func (s StageSpec) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// Spec is the ordered list of stages a Pipeline runs.
type Spec struct {
	Stages []StageSpec `toml:"stages" validate:"required,min=1,dive"`
}

// NewSpec builds and validates a Spec from stages.
func NewSpec(stages ...StageSpec) (Spec, error) {
	spec := Spec{Stages: stages}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}

	return spec, nil
}

// Validate checks stage fields, name uniqueness and that weights sum to 100.
func (s Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	seen := make(map[string]struct{}, len(s.Stages))
	total := 0

	for _, st := range s.Stages {
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("%w: duplicate stage name %q", ErrInvalidSpec, st.Name)
		}

		seen[st.Name] = struct{}{}
		total += st.Weight
	}

	if total != TotalWeight {
		return fmt.Errorf("%w: stage weights sum to %d, want %d", ErrInvalidSpec, total, TotalWeight)
	}

	return nil
}

// Names returns the stage names in execution order.
func (s Spec) Names() []string {
	names := make([]string, len(s.Stages))
	for i, st := range s.Stages {
		names[i] = st.Name
	}

	return names
}

// Cumulative returns the progress percentage reached after each stage.
func (s Spec) Cumulative() []int {
	out := make([]int, len(s.Stages))
	total := 0

	for i, st := range s.Stages {
		total += st.Weight
		out[i] = clampPercent(total)
	}

	return out
}

// ParseSpec decodes a TOML stage list and validates it.
//
//	[[stages]]
//	name = "analyzing"
//	weight = 25
//	duration_ms = 2000
func ParseSpec(data []byte) (Spec, error) {
	var spec Spec

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}

	return spec, nil
}

// LoadSpec reads and parses a TOML stage spec file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read stage spec %s: %w", path, err)
	}

	spec, err := ParseSpec(data)
	if err != nil {
		return Spec{}, fmt.Errorf("stage spec %s: %w", path, err)
	}

	return spec, nil
}

func clampPercent(p int) int {
	return min(max(p, 0), TotalWeight)
}
