package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/storekit/internal/hashid"
	"github.com/roach88/storekit/internal/schema"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitRejected = 1 // rejected write, failed validation, missing key
	ExitUsage    = 2 // bad config, unreachable backend, malformed input
)

// ExitError carries the process exit code of a failed command. Its message
// has already been printed by the command.
type ExitError struct {
	Code int
	Op   string
	Err  error
}

func newExitError(code int, op string, err error) *ExitError {
	return &ExitError{Code: code, Op: op, Err: err}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code. Errors that are not an
// ExitError exit with ExitRejected.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitRejected
}

// Envelope is the shape of every result printed with --format json.
type Envelope struct {
	Status string   `json:"status"` // "ok" | "error"
	Data   any      `json:"data,omitempty"`
	Error  *Problem `json:"error,omitempty"`
}

// Problem describes why a command failed.
type Problem struct {
	Code    string `json:"code"` // C1xx
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Printer writes command results to Out, as plain text or as one canonical
// JSON envelope per line.
type Printer struct {
	Format  string
	Out     io.Writer
	Verbose bool
}

// Result prints text in text mode and data inside an ok envelope in json mode.
func (p *Printer) Result(text string, data any) error {
	if p.Format == "json" {
		return p.envelope(Envelope{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(p.Out, text)
	return err
}

// Fail prints a failure. Validation issues are always listed in text mode;
// other details only with --verbose.
func (p *Printer) Fail(code, message string, details any) error {
	if p.Format == "json" {
		return p.envelope(Envelope{
			Status: "error",
			Error:  &Problem{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(p.Out, "error %s: %s\n", code, message)
	switch d := details.(type) {
	case nil:
	case []schema.Issue:
		for _, issue := range d {
			fmt.Fprintf(p.Out, "  - %s\n", issue)
		}
	default:
		if p.Verbose {
			fmt.Fprintf(p.Out, "  details: %s\n", render(d))
		}
	}
	return nil
}

func (p *Printer) envelope(e Envelope) error {
	data, err := hashid.MarshalCanonical(e)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = p.Out.Write(append(data, '\n'))
	return err
}
