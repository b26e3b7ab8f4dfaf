// Package measure is the manual alternative to a camera scan: a guided
// three-step form whose answers become a body profile the avatar is built
// from.
package measure

// Kind says how a field is filled in.
type Kind int

const (
	// Choice fields take one of a fixed set of options.
	Choice Kind = iota
	// Number fields take a positive decimal number.
	Number
)

// Units selects the unit labels shown next to number fields.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// Field keys.
const (
	KeyGender    = "gender"
	KeyAge       = "age"
	KeyFit       = "fitPreference"
	KeyUnits     = "units"
	KeyHeight    = "height"
	KeyWeight    = "weight"
	KeyChest     = "chest"
	KeyWaist     = "waist"
	KeyHips      = "hips"
	KeyShoulders = "shoulders"
	KeyArmLength = "armLength"
	KeyInseam    = "inseam"
	KeyNeck      = "neck"
	KeyWrist     = "wrist"
)

// Field is one input on a step.
type Field struct {
	Key      string
	Label    string
	Kind     Kind
	Options  []string
	Required bool
	// Guide explains how to take the measurement.
	Guide string
}

// Step is one page of the form. Next is only allowed once every required
// field on it has a value.
type Step struct {
	Name   string
	Title  string
	Fields []Field
}

// Steps returns the form's pages in order.
func Steps() []Step {
	return []Step{
		{
			Name:  "personal",
			Title: "Personal information",
			Fields: []Field{
				{Key: KeyGender, Label: "Gender", Kind: Choice, Required: true,
					Options: []string{"male", "female", "non-binary", "prefer-not-to-say"}},
				{Key: KeyAge, Label: "Age range", Kind: Choice, Required: true,
					Options: []string{"18-25", "26-35", "36-45", "46-55", "56+"}},
				{Key: KeyFit, Label: "Fit preference", Kind: Choice, Required: true,
					Options: []string{"slim", "regular", "relaxed", "oversized"}},
				{Key: KeyUnits, Label: "Units", Kind: Choice, Required: true,
					Options: []string{string(Metric), string(Imperial)}},
			},
		},
		{
			Name:  "basic",
			Title: "Basic measurements",
			Fields: []Field{
				{Key: KeyHeight, Label: "Height", Kind: Number, Required: true},
				{Key: KeyWeight, Label: "Weight", Kind: Number, Required: true},
				{Key: KeyChest, Label: "Chest", Kind: Number, Required: true,
					Guide: "Measure around the fullest part of your chest, keeping the tape horizontal."},
				{Key: KeyWaist, Label: "Waist", Kind: Number, Required: true,
					Guide: "Measure around your natural waistline, the narrowest part of your torso."},
				{Key: KeyHips, Label: "Hips", Kind: Number, Required: true,
					Guide: "Measure around the fullest part of your hips, about 8 inches below your waist."},
			},
		},
		{
			Name:  "detailed",
			Title: "Detailed measurements",
			Fields: []Field{
				{Key: KeyShoulders, Label: "Shoulders", Kind: Number, Required: true,
					Guide: "Measure from the edge of one shoulder to the edge of the other."},
				{Key: KeyArmLength, Label: "Arm length", Kind: Number, Required: true,
					Guide: "Measure from your shoulder to your wrist with your arm extended."},
				{Key: KeyInseam, Label: "Inseam", Kind: Number, Required: true,
					Guide: "Measure from your crotch to your ankle along the inside of your leg."},
				{Key: KeyNeck, Label: "Neck", Kind: Number,
					Guide: "Measure around the base of your neck where a collar would sit."},
				{Key: KeyWrist, Label: "Wrist", Kind: Number,
					Guide: "Measure around your wrist bone."},
			},
		},
	}
}

// UnitLabel is the unit shown after a number field.
func UnitLabel(key string, units Units) string {
	switch {
	case key == KeyHeight && units == Imperial:
		return "ft"
	case key == KeyWeight && units == Imperial:
		return "lbs"
	case key == KeyWeight:
		return "kg"
	case units == Imperial:
		return "in"
	default:
		return "cm"
	}
}
