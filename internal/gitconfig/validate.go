package gitconfig

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxValueLength = 255

var (
	keyRegex   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*(\.[A-Za-z][A-Za-z0-9-]*)*$`)
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

// ValidateKey accepts dotted section.name keys only.
func ValidateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) || !keyRegex.MatchString(key) {
		return invalidValue("key", "must look like section.name")
	}
	return nil
}

// ValidateValue rejects values git would need to escape or that could break
// out of the config line.
func ValidateValue(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidValue(field, "must not be empty")
	}
	if utf8.RuneCountInString(value) > maxValueLength {
		return invalidValue(field, "must be at most 255 characters")
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return invalidValue(field, "must not contain control characters")
		}
	}
	if strings.ContainsAny(value, "[]") {
		return invalidValue(field, "must not contain brackets")
	}
	return nil
}

// ValidateEmail applies ValidateValue plus an email-shape check.
func ValidateEmail(field, value string) error {
	if err := ValidateValue(field, value); err != nil {
		return err
	}
	if !emailRegex.MatchString(value) {
		return invalidValue(field, "is not a valid email address")
	}
	return nil
}
