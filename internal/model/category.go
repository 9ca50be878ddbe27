package model

import (
	"errors"
	"strings"
)

// Category tags what a piece of evidence proves
type Category string

const (
	CategoryMSDS              Category = "msds"
	CategoryUsageEvidence     Category = "usage_evidence"
	CategoryOther             Category = "other"
	CategoryHeatValueEvidence Category = "heat_value_evidence"
	CategoryAnnualEvidence    Category = "annual_evidence"
	CategoryNameplateEvidence Category = "nameplate_evidence"
	CategorySF6Nameplate      Category = "sf6_nameplate"
	CategorySF6Certificate    Category = "sf6_certificate"
)

var ErrInvalidCategory = errors.New("invalid file category")

var categories = map[Category]bool{
	CategoryMSDS:              true,
	CategoryUsageEvidence:     true,
	CategoryOther:             true,
	CategoryHeatValueEvidence: true,
	CategoryAnnualEvidence:    true,
	CategoryNameplateEvidence: true,
	CategorySF6Nameplate:      true,
	CategorySF6Certificate:    true,
}

// ParseCategory validates a category received at the API boundary.
// An empty value maps to CategoryOther.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CategoryOther, nil
	}
	c := Category(s)
	if !categories[c] {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	return categories[c]
}

func (c Category) String() string {
	return string(c)
}
