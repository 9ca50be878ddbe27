package validation

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidPageKey = errors.New("page key may only contain letters, digits, '-' and '_' (max 64 characters)")
	ErrInvalidYear    = errors.New("period year is out of range")
)

var pageKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidatePageKey checks a page key. Page keys become a storage path segment.
func ValidatePageKey(key string) error {
	if !pageKeyPattern.MatchString(key) {
		return ErrInvalidPageKey
	}
	return nil
}

// ValidatePeriodYear checks the reporting year of an entry
func ValidatePeriodYear(year int) error {
	if year < 1900 || year > 9999 {
		return ErrInvalidYear
	}
	return nil
}
