package checklists

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// validate is shared by item configs and service inputs.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return ValidCategory(fl.Field().String())
	})
	_ = validate.RegisterValidation("itemtype", func(fl validator.FieldLevel) bool {
		return ValidItemType(fl.Field().String())
	})
}

// validateStruct runs tag validation and maps failures to a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[ns] = msg
	}
	return &ValidationError{Message: "invalid input", Fields: fields}
}

// ItemConfig is the type-specific configuration of a template item. Each item
// type has exactly one variant.
type ItemConfig interface {
	ItemType() string
	NeedsApproval() bool
	// ValidateValue checks a response value; the empty value always passes.
	ValidateValue(value string) error
}

type TextConfig struct {
	MaxLength        int  `json:"max_length,omitempty" validate:"gte=0"`
	RequiresApproval bool `json:"requires_approval,omitempty"`
}

func (TextConfig) ItemType() string      { return ItemText }
func (c TextConfig) NeedsApproval() bool { return c.RequiresApproval }

func (c TextConfig) ValidateValue(value string) error {
	if c.MaxLength > 0 && utf8.RuneCountInString(value) > c.MaxLength {
		return invalidField("value", fmt.Sprintf("longer than %d characters", c.MaxLength))
	}
	return nil
}

type BooleanConfig struct {
	RequiresApproval bool `json:"requires_approval,omitempty"`
}

func (BooleanConfig) ItemType() string      { return ItemBoolean }
func (c BooleanConfig) NeedsApproval() bool { return c.RequiresApproval }

func (BooleanConfig) ValidateValue(value string) error {
	switch value {
	case "", "true", "false":
		return nil
	}
	return invalidField("value", "must be true or false")
}

// FileConfig serves both file and photo items.
type FileConfig struct {
	kind             string
	MaxFiles         int      `json:"max_files,omitempty" validate:"gte=0"`
	AcceptedTypes    []string `json:"accepted_types,omitempty" validate:"dive,required"`
	RequiresApproval bool     `json:"requires_approval,omitempty"`
}

func (c FileConfig) ItemType() string    { return c.kind }
func (c FileConfig) NeedsApproval() bool { return c.RequiresApproval }

func (FileConfig) ValidateValue(string) error { return nil }

// Accepts reports whether contentType matches one of the accepted types.
// Entries may be exact ("image/png") or wildcard ("image/*").
func (c FileConfig) Accepts(contentType string) bool {
	if len(c.AcceptedTypes) == 0 {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, accepted := range c.AcceptedTypes {
		accepted = strings.ToLower(strings.TrimSpace(accepted))
		if accepted == ct {
			return true
		}
		if strings.HasSuffix(accepted, "/*") && strings.HasPrefix(ct, strings.TrimSuffix(accepted, "*")) {
			return true
		}
	}
	return false
}

type SignatureConfig struct {
	RequiresApproval bool `json:"requires_approval,omitempty"`
}

func (SignatureConfig) ItemType() string      { return ItemSignature }
func (c SignatureConfig) NeedsApproval() bool { return c.RequiresApproval }

func (SignatureConfig) ValidateValue(string) error { return nil }

type DropdownConfig struct {
	Options          []string `json:"options" validate:"required,min=1,unique,dive,required"`
	RequiresApproval bool     `json:"requires_approval,omitempty"`
}

func (DropdownConfig) ItemType() string      { return ItemDropdown }
func (c DropdownConfig) NeedsApproval() bool { return c.RequiresApproval }

func (c DropdownConfig) ValidateValue(value string) error {
	if value == "" || contains(c.Options, value) {
		return nil
	}
	return invalidField("value", "not one of the dropdown options")
}

type NumberConfig struct {
	Min              *float64 `json:"min,omitempty"`
	Max              *float64 `json:"max,omitempty"`
	Unit             string   `json:"unit,omitempty" validate:"max=32"`
	RequiresApproval bool     `json:"requires_approval,omitempty"`
}

func (NumberConfig) ItemType() string      { return ItemNumber }
func (c NumberConfig) NeedsApproval() bool { return c.RequiresApproval }

func (c NumberConfig) ValidateValue(value string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return invalidField("value", "not a number")
	}
	if c.Min != nil && n < *c.Min {
		return invalidField("value", fmt.Sprintf("below minimum %v", *c.Min))
	}
	if c.Max != nil && n > *c.Max {
		return invalidField("value", fmt.Sprintf("above maximum %v", *c.Max))
	}
	return nil
}

// ParseItemConfig decodes raw into the variant for itemType. Unknown keys are rejected.
func ParseItemConfig(itemType string, raw json.RawMessage) (ItemConfig, error) {
	var cfg ItemConfig
	switch itemType {
	case ItemText:
		cfg = &TextConfig{}
	case ItemBoolean:
		cfg = &BooleanConfig{}
	case ItemFile, ItemPhoto:
		cfg = &FileConfig{kind: itemType}
	case ItemSignature:
		cfg = &SignatureConfig{}
	case ItemDropdown:
		cfg = &DropdownConfig{}
	case ItemNumber:
		cfg = &NumberConfig{}
	default:
		return nil, invalidField("type", fmt.Sprintf("unknown item type %q", itemType))
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, invalidField("config", err.Error())
	}
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	if n, ok := cfg.(*NumberConfig); ok && n.Min != nil && n.Max != nil && *n.Min > *n.Max {
		return nil, invalidField("config", "min greater than max")
	}
	return deref(cfg), nil
}

func deref(cfg ItemConfig) ItemConfig {
	switch c := cfg.(type) {
	case *TextConfig:
		return *c
	case *BooleanConfig:
		return *c
	case *FileConfig:
		return *c
	case *SignatureConfig:
		return *c
	case *DropdownConfig:
		return *c
	case *NumberConfig:
		return *c
	}
	return cfg
}

// canonicalConfig re-encodes a parsed config so equal configs compare equal byte-wise.
func canonicalConfig(cfg ItemConfig) json.RawMessage {
	b, err := json.Marshal(cfg)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

// responseComplete is the completeness rule: a non-empty value, and "true" for booleans.
func responseComplete(itemType, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	if itemType == ItemBoolean {
		return value == "true"
	}
	return true
}
