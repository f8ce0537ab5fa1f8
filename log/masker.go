/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"regexp"
	"strings"
)

// StringMasker hides secrets in a string.
type StringMasker interface {
	Mask(s string) string
}

// Mask is a single replacement applied to a string that mentions a secret field.
type Mask struct {
	RegExp *regexp.Regexp
	Mask   string
}

// NewMask compiles a mask. It panics if the regular expression is invalid.
func NewMask(cfg MaskConfig) Mask {
	return Mask{RegExp: regexp.MustCompile(cfg.RegExp), Mask: cfg.Mask}
}

// FieldMasker holds all masks for one secret field.
// Field is lowercased and used as a cheap pre-check before running regular expressions.
type FieldMasker struct {
	Field string
	Masks []Mask
}

func formatMask(field string, format FieldMaskFormat) (MaskConfig, bool) {
	quoted := regexp.QuoteMeta(field)
	switch format {
	case FieldMaskFormatHTTPHeader:
		return MaskConfig{RegExp: `(?i)` + quoted + `: .+?\r\n`, Mask: field + ": ***\r\n"}, true
	case FieldMaskFormatJSON:
		return MaskConfig{RegExp: `(?i)"` + quoted + `"\s*:\s*".*?[^\\]"`, Mask: `"` + field + `": "***"`}, true
	case FieldMaskFormatURLEncoded:
		return MaskConfig{RegExp: `(?i)` + quoted + `\s*=\s*[^&\s]+`, Mask: field + "=***"}, true
	}
	return MaskConfig{}, false
}

// NewFieldMasker builds masks for a rule: explicit masks first, then one per format.
func NewFieldMasker(cfg MaskingRuleConfig) FieldMasker {
	fm := FieldMasker{
		Field: strings.ToLower(cfg.Field),
		Masks: make([]Mask, 0, len(cfg.Masks)+len(cfg.Formats)),
	}
	for _, maskCfg := range cfg.Masks {
		fm.Masks = append(fm.Masks, NewMask(maskCfg))
	}
	for _, format := range cfg.Formats {
		if maskCfg, ok := formatMask(cfg.Field, format); ok {
			fm.Masks = append(fm.Masks, NewMask(maskCfg))
		}
	}
	return fm
}

// Masker hides values of configured secret fields in strings.
type Masker struct {
	FieldMasks []FieldMasker
}

var _ StringMasker = (*Masker)(nil)

// NewMasker creates a Masker for the given rules.
func NewMasker(rules []MaskingRuleConfig) *Masker {
	m := &Masker{FieldMasks: make([]FieldMasker, 0, len(rules))}
	for _, rule := range rules {
		m.FieldMasks = append(m.FieldMasks, NewFieldMasker(rule))
	}
	return m
}

// Mask returns s with every secret replaced by "***".
func (m *Masker) Mask(s string) string {
	lower := strings.ToLower(s)
	for _, fm := range m.FieldMasks {
		if !strings.Contains(lower, fm.Field) {
			continue
		}
		for _, mask := range fm.Masks {
			s = mask.RegExp.ReplaceAllString(s, mask.Mask)
		}
	}
	return s
}

// DefaultMasks covers the credentials that travel with document submissions:
// the detached signature, the bearer token and the token obtained during authentication.
var DefaultMasks = []MaskingRuleConfig{
	{
		Field:   "Authorization",
		Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader},
	},
	{
		Field:   "Signature",
		Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader},
	},
	{
		Field:   "signature",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "token",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
}
