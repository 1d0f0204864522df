package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Flavor is the serialization family of a logged model.
type Flavor string

// Supported flavors.
const (
	FlavorPyfunc      Flavor = "pyfunc"
	FlavorH2O         Flavor = "h2o"
	FlavorKeras       Flavor = "keras"
	FlavorLightGBM    Flavor = "lightgbm"
	FlavorPyTorch     Flavor = "pytorch"
	FlavorSklearn     Flavor = "sklearn"
	FlavorStatsmodels Flavor = "statsmodels"
	FlavorTensorFlow  Flavor = "tensorflow"
	FlavorXGBoost     Flavor = "xgboost"
	FlavorSpacy       Flavor = "spacy"
	FlavorFastai      Flavor = "fastai"

	// DefaultFlavor is used when the caller does not name one.
	DefaultFlavor = FlavorPyfunc
)

// ErrUnsupportedFlavor is returned for a flavor outside of the supported set.
var ErrUnsupportedFlavor = errors.New("unsupported model flavor")

// flavorTags maps every supported flavor to the key it is stored under in an MLmodel file.
//
//nolint:gochecknoglobals // Read-only lookup table.
var flavorTags = map[Flavor]string{
	FlavorPyfunc:      "python_function",
	FlavorH2O:         "h2o",
	FlavorKeras:       "keras",
	FlavorLightGBM:    "lightgbm",
	FlavorPyTorch:     "pytorch",
	FlavorSklearn:     "sklearn",
	FlavorStatsmodels: "statsmodels",
	FlavorTensorFlow:  "tensorflow",
	FlavorXGBoost:     "xgboost",
	FlavorSpacy:       "spacy",
	FlavorFastai:      "fastai",
}

// ParseFlavor converts user input into a Flavor.
// An empty string yields DefaultFlavor.
func ParseFlavor(s string) (Flavor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultFlavor, nil
	}

	f := Flavor(s)
	if _, ok := flavorTags[f]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFlavor, s, strings.Join(flavorNames(), ", "))
	}

	return f, nil
}

// Flavors returns all supported flavors sorted by name.
func Flavors() []Flavor {
	result := make([]Flavor, 0, len(flavorTags))
	for f := range flavorTags {
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})

	return result
}

// Tag returns the canonical tag recognized by the hosting platform.
// It returns an empty string for unsupported flavors.
func (f Flavor) Tag() string {
	return flavorTags[f]
}

// String implements fmt.Stringer.
func (f Flavor) String() string {
	return string(f)
}

func flavorNames() []string {
	flavors := Flavors()

	names := make([]string, 0, len(flavors))
	for _, f := range flavors {
		names = append(names, string(f))
	}

	return names
}
