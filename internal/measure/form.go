package measure

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
)

var (
	// ErrStepIncomplete is returned by Next and Submit while a required
	// field is empty.
	ErrStepIncomplete = errors.New("step incomplete")

	// ErrNoStep is returned when moving past the first or last step.
	ErrNoStep = errors.New("no such step")

	// ErrInvalidValue is returned by Set for a value the field cannot take.
	ErrInvalidValue = errors.New("invalid value")
)

// Form holds the answers and the current step. It is not safe for
// concurrent use; the UI owns it.
type Form struct {
	steps  []Step
	fields map[string]Field
	values map[string]string
	step   int
}

// NewForm starts on the first step with metric units selected.
func NewForm() *Form {
	f := &Form{
		steps:  Steps(),
		fields: make(map[string]Field),
		values: map[string]string{KeyUnits: string(Metric)},
	}

	for _, s := range f.steps {
		for _, fld := range s.Fields {
			f.fields[fld.Key] = fld
		}
	}

	return f
}

// Step returns the current step.
func (f *Form) Step() Step {
	return f.steps[f.step]
}

// Steps returns every step.
func (f *Form) Steps() []Step {
	return f.steps
}

// Index is the 1-based number of the current step.
func (f *Form) Index() int {
	return f.step + 1
}

// Total is the number of steps.
func (f *Form) Total() int {
	return len(f.steps)
}

// Progress is the current step's share of the form, rounded to a percent.
// It is 100 on the last step.
func (f *Form) Progress() int {
	return int(math.Round(float64(f.Index()) / float64(f.Total()) * 100))
}

// Units returns the selected unit system.
func (f *Form) Units() Units {
	return Units(f.values[KeyUnits])
}

// Value returns the answer for key, or "".
func (f *Form) Value(key string) string {
	return f.values[key]
}

// Set stores an answer. An empty value clears the field.
func (f *Form) Set(key, value string) error {
	fld, ok := f.fields[key]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidValue, key)
	}

	if value == "" {
		delete(f.values, key)
		return nil
	}

	switch fld.Kind {
	case Choice:
		if !slices.Contains(fld.Options, value) {
			return fmt.Errorf("%w: %s must be one of %v", ErrInvalidValue, fld.Label, fld.Options)
		}
	case Number:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || !(n > 0) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: %s must be a positive number", ErrInvalidValue, fld.Label)
		}
	}

	f.values[key] = value

	return nil
}

// Cycle moves a choice field to the next (delta > 0) or previous option,
// wrapping around. An unset field starts from the first or last option.
func (f *Form) Cycle(key string, delta int) error {
	fld, ok := f.fields[key]
	if !ok || fld.Kind != Choice {
		return fmt.Errorf("%w: %q is not a choice field", ErrInvalidValue, key)
	}

	n := len(fld.Options)

	i := slices.Index(fld.Options, f.values[key])
	switch {
	case i < 0 && delta > 0:
		i = 0
	case i < 0:
		i = n - 1
	default:
		i = ((i+delta)%n + n) % n
	}

	return f.Set(key, fld.Options[i])
}

// StepComplete reports whether every required field on step i (0-based)
// has a value.
func (f *Form) StepComplete(i int) bool {
	if i < 0 || i >= len(f.steps) {
		return false
	}

	for _, fld := range f.steps[i].Fields {
		if fld.Required && f.values[fld.Key] == "" {
			return false
		}
	}

	return true
}

// Missing lists the labels of empty required fields on the current step.
func (f *Form) Missing() []string {
	var out []string

	for _, fld := range f.Step().Fields {
		if fld.Required && f.values[fld.Key] == "" {
			out = append(out, fld.Label)
		}
	}

	return out
}

// Next moves to the following step once the current one is complete.
func (f *Form) Next() error {
	if f.step == len(f.steps)-1 {
		return fmt.Errorf("%w: already on the last step", ErrNoStep)
	}

	if !f.StepComplete(f.step) {
		return fmt.Errorf("%w: %s", ErrStepIncomplete, f.Step().Title)
	}

	f.step++

	return nil
}

// Prev moves back one step. Answers are kept.
func (f *Form) Prev() error {
	if f.step == 0 {
		return fmt.Errorf("%w: already on the first step", ErrNoStep)
	}

	f.step--

	return nil
}

// Submit builds the profile. It is only allowed from the last step with
// every step complete.
func (f *Form) Submit() (Profile, error) {
	if f.step != len(f.steps)-1 {
		return Profile{}, fmt.Errorf("%w: submit from the last step", ErrNoStep)
	}

	for i, s := range f.steps {
		if !f.StepComplete(i) {
			return Profile{}, fmt.Errorf("%w: %s", ErrStepIncomplete, s.Title)
		}
	}

	num := func(key string) float64 {
		// values were checked by Set
		n, _ := strconv.ParseFloat(f.values[key], 64)
		return n
	}

	p := Profile{
		Gender:   f.values[KeyGender],
		AgeRange: f.values[KeyAge],
		Fit:      f.values[KeyFit],
		Units:    f.Units(),
		Measurements: Measurements{
			Height:    num(KeyHeight),
			Weight:    num(KeyWeight),
			Chest:     num(KeyChest),
			Waist:     num(KeyWaist),
			Hips:      num(KeyHips),
			Shoulders: num(KeyShoulders),
			ArmLength: num(KeyArmLength),
			Inseam:    num(KeyInseam),
			Neck:      num(KeyNeck),
			Wrist:     num(KeyWrist),
		},
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	return p, nil
}
