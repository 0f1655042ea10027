package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/storekit/internal/hashid"
	"github.com/roach88/storekit/internal/schema"
)

// report prints err and returns the ExitError the command should fail with.
func report(p *Printer, op string, err error) error {
	code, exit := ErrCodeGeneric, ExitUsage
	var details any

	var cfgErr *ConfigError
	var valErr *schema.ValidationError
	switch {
	case errors.As(err, &valErr):
		code, exit = ErrCodeValidation, ExitRejected
		details = valErr.Issues
	case errors.Is(err, errNotFound):
		code, exit = ErrCodeNotFound, ExitRejected
	case errors.As(err, &cfgErr):
		code = cfgErr.Code
	}

	_ = p.Fail(code, fmt.Sprintf("%s: %v", op, err), details)
	return newExitError(exit, op, err)
}

// render formats v as canonical JSON for text output.
func render(v any) string {
	data, err := hashid.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
