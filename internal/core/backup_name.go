package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxBackupNameLength = 100

var backupNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// ValidateBackupName trims name and checks it is non-empty, at most 100
// characters and made of letters, digits, spaces, hyphens and underscores.
func ValidateBackupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", &ValidationError{Field: "name", Message: "cannot be empty"}
	case utf8.RuneCountInString(name) > maxBackupNameLength:
		return "", &ValidationError{Field: "name", Message: "cannot exceed 100 characters"}
	case !backupNamePattern.MatchString(name):
		return "", &ValidationError{Field: "name", Message: "contains invalid characters"}
	}
	return name, nil
}
