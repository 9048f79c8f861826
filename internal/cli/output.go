package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The API refused the request
	ExitCommandError = 2 // Bad flags or arguments
	ExitNotSignedIn  = 3 // No session, or the session ended during the command
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// apiFailure maps an API error onto an exit code. A 401 that survives the
// refresh means the stored session is gone.
func apiFailure(action string, err error) error {
	if apiclient.IsUnauthorized(err) {
		return WrapExitError(ExitNotSignedIn, action+" failed, sign in again", err)
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed: %s", action, apiErr.Message))
	}
	return WrapExitError(ExitFailure, action+" failed", err)
}

// Printer writes results as an aligned table, JSON or YAML.
type Printer struct {
	Format string
	Writer io.Writer
}

// Print writes v. rows renders the table form; when rows is nil the table
// format falls back to YAML.
func (p *Printer) Print(v any, rows func(w io.Writer)) error {
	switch {
	case p.Format == "json":
		enc := json.NewEncoder(p.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case p.Format == "yaml" || rows == nil:
		return p.yaml(v)
	}

	tw := tabwriter.NewWriter(p.Writer, 0, 4, 2, ' ', 0)
	rows(tw)
	return tw.Flush()
}

// yaml goes through JSON first so field names match the API's.
func (p *Printer) yaml(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "[Printer yaml]")
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return errors.Wrapf(err, "[Printer yaml]")
	}
	enc := yaml.NewEncoder(p.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return errors.Wrapf(err, "[Printer yaml]")
	}
	return enc.Close()
}

// Message prints a one-line confirmation, or {"message": ...} for the
// structured formats.
func (p *Printer) Message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.Format == "table" {
		_, err := fmt.Fprintln(p.Writer, msg)
		return err
	}
	return p.Print(map[string]string{"message": msg}, nil)
}
