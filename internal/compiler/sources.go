package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// JSONSource reads rule files that are a JSON array of records.
type JSONSource struct {
	Compiler
}

// LoadRaw reads path, validates it against the rule schema and decodes it.
func (s *JSONSource) LoadRaw(path string) (RawDocument, error) {
	data, err := readRuleFile(path)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (RawDocument, error) {
	if err := validateSchema(gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, err
	}

	var doc RawDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "document",
			Message: err.Error(),
			Err:     err,
		}
	}
	return doc, nil
}

// YAMLSource reads rule files that are a YAML sequence of records.
type YAMLSource struct {
	Compiler
}

// LoadRaw reads path, validates it against the rule schema and decodes it.
func (s *YAMLSource) LoadRaw(path string) (RawDocument, error) {
	data, err := readRuleFile(path)
	if err != nil {
		return nil, err
	}
	return decodeYAML(data)
}

func decodeYAML(data []byte) (RawDocument, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "document",
			Message: err.Error(),
			Err:     err,
		}
	}

	if err := validateSchema(gojsonschema.NewGoLoader(generic)); err != nil {
		return nil, err
	}

	var doc RawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "document",
			Message: err.Error(),
			Err:     err,
		}
	}
	return doc, nil
}

// CUESource reads CUE rule files. The records live in a top-level
// "conversions" list:
//
//	conversions: [{
//		game_event: "player_death"
//		player_conversions: [{userid: "attacker", player: "killer"}]
//		event_fires: [{event: "kill", player: "killer", condition: "not_self_inflicted"}]
//	}]
//
// Errors carry CUE source positions.
type CUESource struct {
	Compiler
}

// LoadRaw compiles path with the CUE SDK and decodes the conversions list.
func (s *CUESource) LoadRaw(path string) (RawDocument, error) {
	data, err := readRuleFile(path)
	if err != nil {
		return nil, err
	}
	return decodeCUE(data, path)
}

func decodeCUE(data []byte, filename string) (RawDocument, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("conversions"))
	if !list.Exists() {
		return nil, &CompileError{
			Code:    ErrSchemaViolation,
			Field:   "conversions",
			Message: "conversions list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var doc RawDocument
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()

		for _, field := range []string{"game_event", "player_conversions", "event_fires"} {
			if elem.LookupPath(cue.ParsePath(field)).Exists() {
				continue
			}
			code := ErrSchemaViolation
			if field == "game_event" {
				code = ErrMissingRawEvent
			}
			return nil, &CompileError{
				Code:    code,
				Field:   fmt.Sprintf("conversions[%d].%s", i, field),
				Message: field + " is required",
				Pos:     elem.Pos(),
			}
		}

		if err := elem.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}

		var rc RawConversion
		if err := elem.Decode(&rc); err != nil {
			return nil, formatCUEError(err)
		}
		doc = append(doc, rc)
	}

	return doc, nil
}

func readRuleFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "path",
			Message: err.Error(),
			Err:     err,
		}
	}
	return data, nil
}
