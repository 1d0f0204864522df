package model

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidModelName is returned when a publish name breaks the naming rule.
var ErrInvalidModelName = errors.New("invalid model name")

// namePattern requires a leading letter followed by letters, digits, '_' or '-'.
//
//nolint:gochecknoglobals // Compiled once.
var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateName checks the name a model is published under.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf(
			"%w %q: must start with a letter followed by letters, digits, '_' or '-'",
			ErrInvalidModelName, name)
	}

	return nil
}
