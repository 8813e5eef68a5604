package compiler

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RawDocument is a rule file before parsing: an ordered list of
// conversion records in the on-disk field names.
type RawDocument []RawConversion

// RawConversion is one record of a rule file.
type RawConversion struct {
	GameEvent         string                `json:"game_event" yaml:"game_event"`
	PlayerConversions []RawPlayerConversion `json:"player_conversions" yaml:"player_conversions"`
	EventFires        []RawEventFire        `json:"event_fires" yaml:"event_fires"`
}

// RawPlayerConversion maps an identifier field to an entity field.
type RawPlayerConversion struct {
	UserID string `json:"userid" yaml:"userid"`
	Player string `json:"player" yaml:"player"`
}

// RawEventFire names a derived event to fire and the entity field it needs.
type RawEventFire struct {
	Event     string `json:"event" yaml:"event"`
	Player    string `json:"player" yaml:"player"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

//go:embed rules.schema.json
var rulesSchemaJSON string

// rulesSchema is compiled once on first use.
var rulesSchema = mustCompileSchema(rulesSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiler: invalid embedded rule schema: %v", err))
	}
	return s
}

// validateSchema checks a decoded document (JSON bytes or a Go value from
// a YAML decoder) against the rule schema.
func validateSchema(doc gojsonschema.JSONLoader) error {
	result, err := rulesSchema.Validate(doc)
	if err != nil {
		return &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "document",
			Message: err.Error(),
			Err:     err,
		}
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &CompileError{
		Code:    ErrSchemaViolation,
		Field:   result.Errors()[0].Field(),
		Message: strings.Join(msgs, "; "),
	}
}
