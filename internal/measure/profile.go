package measure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// ProfileFile is the file name Save writes.
const ProfileFile = "measurements.toml"

// ErrInvalidProfile is returned for a profile that fails validation.
var ErrInvalidProfile = errors.New("invalid profile")

//nolint:gochecknoglobals // validator caches struct metadata
var validate = validator.New(validator.WithRequiredStructEnabled())

// Profile is a submitted form.
type Profile struct {
	Gender       string       `toml:"gender" validate:"required,oneof=male female non-binary prefer-not-to-say"`
	AgeRange     string       `toml:"age_range" validate:"required,oneof=18-25 26-35 36-45 46-55 56+"`
	Fit          string       `toml:"fit_preference" validate:"required,oneof=slim regular relaxed oversized"`
	Units        Units        `toml:"units" validate:"required,oneof=metric imperial"`
	Measurements Measurements `toml:"measurements"`
}

// Measurements are in the profile's units. Neck and wrist are optional and
// zero when not given.
type Measurements struct {
	Height    float64 `toml:"height" validate:"gt=0"`
	Weight    float64 `toml:"weight" validate:"gt=0"`
	Chest     float64 `toml:"chest" validate:"gt=0"`
	Waist     float64 `toml:"waist" validate:"gt=0"`
	Hips      float64 `toml:"hips" validate:"gt=0"`
	Shoulders float64 `toml:"shoulders" validate:"gt=0"`
	ArmLength float64 `toml:"arm_length" validate:"gt=0"`
	Inseam    float64 `toml:"inseam" validate:"gt=0"`
	Neck      float64 `toml:"neck,omitempty" validate:"gte=0"`
	Wrist     float64 `toml:"wrist,omitempty" validate:"gte=0"`
}

// Validate checks required answers and that measurements are positive.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	return nil
}

// Save writes the profile to dir/measurements.toml.
func Save(p Profile, dir string) (artifact.Artifact, error) {
	if err := p.Validate(); err != nil {
		return artifact.Artifact{}, err
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to encode profile: %w", err)
	}

	path := filepath.Join(dir, ProfileFile)

	//nolint:gosec // profile is not secret
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to write profile %s: %w", path, err)
	}

	return artifact.FromFile(path, artifact.MediaTypeTOML)
}

// Load reads and validates a saved profile.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	return p, p.Validate()
}
