package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/easyevents/internal/compiler"
	"github.com/roach88/easyevents/internal/conditions"
	"github.com/roach88/easyevents/internal/ir"
)

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the rules loaded from a file or directory.
type LoadResult struct {
	Rules     []ir.ConversionRule
	Files     []string // rule files read, in load order
	RulesHash string
}

// LoadError represents an error that occurred during rule loading.
type LoadError struct {
	Code    string
	Message string
	File    string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by all CLI commands. Rule errors reuse the
// compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No rule files found
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeRoster      = "E008" // Roster could not be loaded
	ErrCodeStore       = "E009" // Firing log could not be opened or read
)

// LoadRules loads a rule file, or every rule file under a directory, with
// the default conditions. Rules from several files are concatenated in
// file-name order.
func LoadRules(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindRuleFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no rule files found in %s", path)}}
		}
	}

	reg := conditions.Defaults()
	result := &LoadResult{}
	var errs []error

	for _, file := range files {
		rules, err := compiler.LoadFile(file, reg)
		if err != nil {
			errs = append(errs, convertCompileError(err, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Rules = append(result.Rules, rules...)
		result.Files = append(result.Files, file)
	}

	hash, err := ir.RulesHash(result.Rules)
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
		return result, errs
	}
	result.RulesHash = hash

	return result, errs
}

// FindRuleFiles walks the directory and returns all .json, .yaml, .yml and
// .cue paths in lexical order.
func FindRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml", ".cue":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Message
		if compileErr.Field != "" {
			msg = compileErr.Field + ": " + msg
		}
		return &LoadError{
			Code:    compileErr.Code,
			Message: msg,
			File:    file,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
		File:    file,
	}
}

// firstLoadError returns the code and message of the first load error.
func firstLoadError(errs []error) (string, string) {
	var loadErr *LoadError
	if errors.As(errs[0], &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, errs[0].Error()
}
