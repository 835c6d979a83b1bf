package domain

import (
	"encoding/json"
	"strings"
)

// CustomizationKind tags the variant held by a Customization
type CustomizationKind int

const (
	CustomizationNone CustomizationKind = iota
	CustomizationStructured
	CustomizationFreeText
)

func (k CustomizationKind) String() string {
	switch k {
	case CustomizationStructured:
		return "structured"
	case CustomizationFreeText:
		return "free_text"
	default:
		return "none"
	}
}

// Customization is the parsed form of the free-form customizationDetails
// string a customer attaches to a cart line. Structured holds a flat JSON
// object of measurements, FreeText holds anything else.
type Customization struct {
	Kind   CustomizationKind
	Fields map[string]string
	Text   string
}

// ParseCustomization never fails. Blank input is None, a JSON object of
// string values is Structured, and any other non-blank input is FreeText.
func ParseCustomization(raw string) Customization {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Customization{Kind: CustomizationNone}
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(trimmed), &fields); err == nil && fields != nil {
		return Customization{Kind: CustomizationStructured, Fields: fields}
	}

	return Customization{Kind: CustomizationFreeText, Text: raw}
}

// HasData reports whether the customization carries anything that warrants
// the surcharge.
func (c Customization) HasData() bool {
	switch c.Kind {
	case CustomizationStructured:
		for _, v := range c.Fields {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
		return false
	case CustomizationFreeText:
		return strings.TrimSpace(c.Text) != ""
	default:
		return false
	}
}
