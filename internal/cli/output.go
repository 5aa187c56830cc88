package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/plan"
	"github.com/roach88/cozoq/internal/result"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The engine (or a recorded engine) rejected a script
	ExitCommandError = 2 // Command error (invalid paths, journal not found, bad plan, etc.)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeNotFound = "E005" // Path not found
	ErrCodeQuery    = "E201" // Engine rejected the script
	ErrCodeSession  = "E202" // Session or transport failure
	ErrCodeUsage    = "E203" // Invalid request input
	ErrCodePlan     = "E301" // Plan file could not be loaded
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set once the error has been written to the command's
	// output, so the entry point does not print it again.
	Reported bool
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// reportedExitError is WrapExitError for errors already written by an
// OutputFormatter.
func reportedExitError(code int, message string, err error) *ExitError {
	e := WrapExitError(code, message, err)
	e.Reported = true
	return e
}

// IsReported reports whether err has already been written to the command's
// output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
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

// ErrorCode classifies err into one of the CLI error codes.
func ErrorCode(err error) string {
	var loadErr *plan.LoadError
	switch {
	case errors.As(err, &loadErr):
		return ErrCodePlan
	case dberr.IsQueryError(err):
		return ErrCodeQuery
	case dberr.IsSessionError(err):
		return ErrCodeSession
	case dberr.IsUsageError(err):
		return ErrCodeUsage
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns it as an ExitError
// carrying exitCode.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	code := ErrorCode(err)
	var details any
	var qe *dberr.QueryError
	if errors.As(err, &qe) && qe.Raw != "" {
		details = qe.Raw
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)
	return reportedExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// ResultView is the JSON shape of a decoded result.
type ResultView struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Took    *float64 `json:"took,omitempty"`
}

// NewResultView copies res into its JSON shape.
func NewResultView(res *result.Result) ResultView {
	v := ResultView{Columns: res.Columns(), Rows: res.Rows()}
	if took, ok := res.Elapsed(); ok {
		v.Took = &took
	}
	return v
}

// WriteTable renders v as an aligned text table followed by a row count.
func WriteTable(w io.Writer, v ResultView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(v.Columns) > 0 {
		fmt.Fprintln(tw, strings.Join(v.Columns, "\t"))
		seps := make([]string, len(v.Columns))
		for i, c := range v.Columns {
			seps[i] = strings.Repeat("-", len(c))
		}
		fmt.Fprintln(tw, strings.Join(seps, "\t"))
	}
	for _, row := range v.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	noun := "rows"
	if len(v.Rows) == 1 {
		noun = "row"
	}
	if v.Took != nil {
		_, err := fmt.Fprintf(w, "(%d %s, took %gs)\n", len(v.Rows), noun, *v.Took)
		return err
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", len(v.Rows), noun)
	return err
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
