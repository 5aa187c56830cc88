package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// LoadError reports a plan file that could not be read or decoded.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Extensions lists the file extensions Load understands.
var Extensions = []string{".yaml", ".yml", ".json", ".cue"}

// Load reads a plan file, choosing the decoder by extension. A plan without
// a name takes the file's base name.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "read plan", Err: err}
	}

	var p *Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = decodeYAML(path, data)
	case ".json":
		p, err = decodeJSON(path, data)
	case ".cue":
		p, err = decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("unsupported plan extension %q (want one of %v)", filepath.Ext(path), Extensions)}
	}
	if err != nil {
		return nil, err
	}

	p.Source = path
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := p.Validate(); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error(), Err: err}
	}
	return p, nil
}

// LoadDir loads every plan file directly inside dir in lexical order.
func LoadDir(dir string) ([]*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Message: "read plan directory", Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isPlanFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	plans := make([]*Plan, 0, len(names))
	for _, name := range names {
		p, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func isPlanFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func decodeYAML(path string, data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Path: path, Message: "empty plan file"}
		}
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("parse YAML: %v", err), Err: err}
	}
	return &p, nil
}

func decodeJSON(path string, data []byte) (*Plan, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("parse JSON: %v", err), Err: err}
	}
	return &p, nil
}

func decodeCUE(path string, data []byte) (*Plan, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(path, err)
	}

	planVal := value.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &LoadError{Path: path, Message: "no top-level plan field"}
	}
	if err := planVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(path, err)
	}

	var p Plan
	if err := planVal.Decode(&p); err != nil {
		return nil, formatCUEError(path, err)
	}
	return &p, nil
}

// formatCUEError keeps the first CUE error and its source position.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error(), Err: err}
	}

	first := errs[0]
	loadErr := &LoadError{Path: path, Message: first.Error(), Err: err}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
