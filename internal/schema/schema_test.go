package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCUE_NumberField(t *testing.T) {
	ctx := context.Background()
	v, err := CompileCUE("counter", `a: number`, "")
	require.NoError(t, err)

	assert.NoError(t, v.Validate(ctx, map[string]any{"a": 5}))
	assert.NoError(t, v.Validate(ctx, map[string]any{"a": 1.5, "extra": true}), "open struct")

	err = v.Validate(ctx, map[string]any{"a": "not-a-number"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "counter", ve.Schema)
	require.NotEmpty(t, ve.Issues)
	assert.Equal(t, "a", ve.Issues[0].Field)
}

func TestCUE_MissingRequiredField(t *testing.T) {
	v, err := CompileCUE("counter", `a: number`, "")
	require.NoError(t, err)

	err = v.Validate(context.Background(), map[string]any{})
	assert.True(t, IsValidationError(err))
}

func TestCUE_DefinitionPath(t *testing.T) {
	ctx := context.Background()
	src := `
#Settings: {
	theme:    "light" | "dark"
	fontSize: int & >=8
	beta?:    bool
}
`
	v, err := CompileCUE("settings", src, "#Settings")
	require.NoError(t, err)
	assert.Equal(t, "settings", v.Name())

	assert.NoError(t, v.Validate(ctx, map[string]any{"theme": "dark", "fontSize": 12}))
	assert.Error(t, v.Validate(ctx, map[string]any{"theme": "neon", "fontSize": 12}))
	assert.Error(t, v.Validate(ctx, map[string]any{"theme": "dark", "fontSize": 4}))
	assert.Error(t, v.Validate(ctx, map[string]any{"theme": "dark", "fontSize": 12, "unknown": 1}), "definitions are closed")
}

func TestCUE_DecodedNumbersAreInts(t *testing.T) {
	ctx := context.Background()
	v, err := CompileCUE("counter", `count: int`, "")
	require.NoError(t, err)

	assert.NoError(t, v.Validate(ctx, map[string]any{"count": float64(3)}))
	assert.Error(t, v.Validate(ctx, map[string]any{"count": 3.5}))
}

func TestCUE_UnencodableState(t *testing.T) {
	v, err := CompileCUE("any", `{...}`, "")
	require.NoError(t, err)

	err = v.Validate(context.Background(), map[string]any{"fn": func() {}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeEncode, ve.Issues[0].Code)
}

func TestCompileCUE_Errors(t *testing.T) {
	_, err := CompileCUE("bad", `a: {`, "")
	assert.Error(t, err)

	_, err = CompileCUE("missing", `a: number`, "#Nope")
	assert.Error(t, err)
}

func TestLoadCUEFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings.cue")
	require.NoError(t, os.WriteFile(file, []byte(`count: int`), 0o644))

	v, err := LoadCUEFile("settings", file, "")
	require.NoError(t, err)
	assert.NoError(t, v.Validate(context.Background(), map[string]any{"count": 1}))

	_, err = LoadCUEFile("settings", filepath.Join(dir, "absent.cue"), "")
	assert.Error(t, err)
}

type profile struct {
	Name  string `json:"name" validate:"required"`
	Age   int    `json:"age" validate:"gte=0,lte=150"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	ctx := context.Background()
	v := NewStruct[profile]("profile")

	assert.NoError(t, v.Validate(ctx, map[string]any{"name": "ada", "age": 36}))
	assert.NoError(t, v.Validate(ctx, map[string]any{"name": "ada", "age": float64(36)}), "JSON numbers decode into ints")

	err := v.Validate(ctx, map[string]any{"age": 200})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []Issue{
		{Field: "name", Message: `failed "required" check`, Code: ErrCodeIncomplete},
		{Field: "age", Message: `failed "lte" check`, Code: ErrCodeConstraint},
	}, ve.Issues)

	err = v.Validate(ctx, map[string]any{"name": "ada", "age": "old"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeType, ve.Issues[0].Code)
}

func TestStruct_NumbersMustFitIntFields(t *testing.T) {
	ctx := context.Background()
	v := NewStruct[profile]("profile")

	err := v.Validate(ctx, map[string]any{"name": "ada", "age": 36.5})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeType, ve.Issues[0].Code)
	assert.Contains(t, ve.Issues[0].Message, "36.5 is not an integer")

	assert.NoError(t, v.Validate(ctx, map[string]any{"name": "ada", "age": 36.0}))
}

func TestStruct_UnknownKeysAreRejected(t *testing.T) {
	ctx := context.Background()
	v := NewStruct[profile]("profile")

	err := v.Validate(ctx, map[string]any{"name": "ada", "age": 36, "nickname": "countess"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeType, ve.Issues[0].Code)
	assert.Contains(t, ve.Issues[0].Message, "nickname")
}

func TestFunc(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := Func(func(context.Context, map[string]any) error { return boom })

	assert.NoError(t, Any.Validate(ctx, nil))
	assert.ErrorIs(t, failing.Validate(ctx, nil), boom)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Schema: "s", Issues: []Issue{
		{Field: "a", Message: "bad", Code: ErrCodeType},
		{Message: "whole", Code: ErrCodeEncode},
	}}
	assert.Equal(t, "schema s: [S101] a: bad; [S103] whole", err.Error())
}
