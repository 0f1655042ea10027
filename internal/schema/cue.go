package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

// CUE validates snapshots by unifying them with a CUE value.
//
// Thread-safety: safe for concurrent use; evaluation is serialized because a
// cue.Context is not.
type CUE struct {
	name   string
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// CompileCUE compiles src and validates against the value at path, or the
// whole file when path is empty.
//
// Example:
//
//	v, err := schema.CompileCUE("settings", `#Settings: {theme: "light" | "dark", fontSize: int & >=8}`, "#Settings")
func CompileCUE(name, src, path string) (*CUE, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	if path != "" {
		v = v.LookupPath(cue.ParsePath(path))
		if !v.Exists() {
			return nil, fmt.Errorf("compile schema %s: path %s not found", name, path)
		}
	}
	return &CUE{name: name, ctx: ctx, schema: v}, nil
}

// LoadCUEFile reads a CUE schema from file.
func LoadCUEFile(name, file, path string) (*CUE, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	return CompileCUE(name, string(src), path)
}

// Name returns the schema name used in errors.
func (v *CUE) Name() string {
	return v.name
}

// Validate unifies state with the schema and requires a concrete result.
func (v *CUE) Validate(_ context.Context, state map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.encode(state)
	if err != nil {
		return &ValidationError{Schema: v.name, Issues: []Issue{{Message: err.Error(), Code: ErrCodeEncode}}}
	}
	if err := v.schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Schema: v.name, Issues: cueIssues(err)}
	}
	return nil
}

// encode goes through JSON so integral numbers unify with int, whatever Go
// type holds them.
func (v *CUE) encode(state map[string]any) (cue.Value, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return cue.Value{}, err
	}
	expr, err := cuejson.Extract(v.name, raw)
	if err != nil {
		return cue.Value{}, err
	}
	data := v.ctx.BuildExpr(expr)
	return data, data.Err()
}

func cueIssues(err error) []Issue {
	errs := cueerrors.Errors(err)
	issues := make([]Issue, 0, len(errs))
	for _, e := range errs {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		code := ErrCodeConstraint
		switch {
		case strings.Contains(msg, "incomplete value"):
			code = ErrCodeIncomplete
		case strings.Contains(msg, "mismatched types"):
			code = ErrCodeType
		}
		issues = append(issues, Issue{
			Field:   strings.Join(e.Path(), "."),
			Message: msg,
			Code:    code,
		})
	}
	return issues
}
