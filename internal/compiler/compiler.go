// Package compiler loads conversion rule files and parses them into
// ir.ConversionRule values.
//
// Loading is split in two steps so new formats only add a reader:
//
//	src, _ := compiler.ForPath("rules.yaml", conditions.Defaults())
//	rules, err := compiler.Load(src, "rules.yaml")
//
// LoadRaw reads and decodes a file into a RawDocument. Parse turns the
// document into rules, binding condition names to predicates. Parse is
// shared by every format through the embedded Compiler.
package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/easyevents/internal/conditions"
	"github.com/roach88/easyevents/internal/ir"
)

// Source reads one rule file format.
type Source interface {
	LoadRaw(path string) (RawDocument, error)
	Parse(doc RawDocument) ([]ir.ConversionRule, error)
}

// Load reads path with src and parses the result.
func Load(src Source, path string) ([]ir.ConversionRule, error) {
	doc, err := src.LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	rules, err := src.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return rules, nil
}

// ForPath picks a Source by file extension (.json, .yaml, .yml, .cue).
func ForPath(path string, reg conditions.Registry) (Source, error) {
	c := Compiler{Conditions: reg}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return &JSONSource{Compiler: c}, nil
	case ".yaml", ".yml":
		return &YAMLSource{Compiler: c}, nil
	case ".cue":
		return &CUESource{Compiler: c}, nil
	default:
		return nil, &CompileError{
			Code:    ErrMalformedDocument,
			Field:   "path",
			Message: fmt.Sprintf("unsupported rule file extension %q", ext),
		}
	}
}

// LoadFile is ForPath followed by Load.
func LoadFile(path string, reg conditions.Registry) ([]ir.ConversionRule, error) {
	src, err := ForPath(path, reg)
	if err != nil {
		return nil, err
	}
	return Load(src, path)
}

// Compiler parses RawDocuments. Conditions is consulted for every fire
// that names a condition; a nil registry knows no conditions.
type Compiler struct {
	Conditions conditions.Registry
}

// Parse converts doc into rules, preserving record, remap and fire order.
// It stops at the first unknown condition.
func (c Compiler) Parse(doc RawDocument) ([]ir.ConversionRule, error) {
	rules := make([]ir.ConversionRule, 0, len(doc))

	for i, rc := range doc {
		if strings.TrimSpace(rc.GameEvent) == "" {
			return nil, &CompileError{
				Code:    ErrMissingRawEvent,
				Field:   fmt.Sprintf("[%d].game_event", i),
				Message: "raw event name is required",
			}
		}

		rule := ir.ConversionRule{
			RawEvent: rc.GameEvent,
			Remaps:   make([]ir.IdentifierRemap, 0, len(rc.PlayerConversions)),
			Fires:    make([]ir.FireRule, 0, len(rc.EventFires)),
		}

		for _, pc := range rc.PlayerConversions {
			rule.Remaps = append(rule.Remaps, ir.IdentifierRemap{
				SourceField: pc.UserID,
				TargetField: pc.Player,
			})
		}

		for j, ef := range rc.EventFires {
			fire := ir.FireRule{
				TargetEvent: ef.Event,
				EntityField: ef.Player,
			}

			if ef.Condition != "" {
				guard, name, ok := c.Conditions.Lookup(ef.Condition)
				if !ok {
					return nil, &CompileError{
						Code:    ErrUndefinedCondition,
						Field:   fmt.Sprintf("[%d].event_fires[%d].condition", i, j),
						Message: fmt.Sprintf("unknown condition %q", ef.Condition),
						Err:     ErrUnknownPredicate,
					}
				}
				fire.Condition = string(name)
				fire.Guard = guard
			}

			rule.Fires = append(rule.Fires, fire)
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// Encode converts rules back into their on-disk record form.
func Encode(rules []ir.ConversionRule) RawDocument {
	doc := make(RawDocument, 0, len(rules))
	for _, r := range rules {
		rc := RawConversion{
			GameEvent:         r.RawEvent,
			PlayerConversions: make([]RawPlayerConversion, 0, len(r.Remaps)),
			EventFires:        make([]RawEventFire, 0, len(r.Fires)),
		}
		for _, m := range r.Remaps {
			rc.PlayerConversions = append(rc.PlayerConversions, RawPlayerConversion{UserID: m.SourceField, Player: m.TargetField})
		}
		for _, f := range r.Fires {
			rc.EventFires = append(rc.EventFires, RawEventFire{Event: f.TargetEvent, Player: f.EntityField, Condition: f.Condition})
		}
		doc = append(doc, rc)
	}
	return doc
}
