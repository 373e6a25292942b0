package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/policy"
)

// Error codes reported by validate for problems found before validation.
const (
	ErrCodeLoad    = "E001" // Directory missing or holding no CUE files
	ErrCodeCompile = "E002" // CUE does not evaluate or violates the schema
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                     `json:"valid"`
	Policies []string                 `json:"policies,omitempty"`
	Errors   []policy.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <policies-dir>",
		Short: "Validate CUE policy overrides",
		Long: `Compile the CUE policy files in a directory, overlay them on the
built-in policies and check the merged set: duplicate domains, content types
claimed twice, unknown cascade parents and vote domains, bad rank tables.

Exit codes:
  0 - Policies valid
  1 - Validation errors found
  2 - Command error (missing directory, CUE that does not compile)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	overrides, err := policy.LoadDir(dir)
	if err != nil {
		var compileErr *policy.CompileError
		if errors.As(err, &compileErr) {
			return outputValidateError(formatter, ErrCodeCompile, compileErr.Error())
		}
		return outputValidateError(formatter, ErrCodeLoad, err.Error())
	}
	formatter.VerboseLog("Compiled %d policy override(s) from %s", len(overrides), dir)

	builtin, err := policy.Builtin()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile built-in policies", err)
	}
	merged := policy.Merge(builtin, overrides)

	if errs := policy.Validate(merged); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	names := make([]string, len(overrides))
	for i, s := range overrides {
		names[i] = s.Name
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Policies: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d policy override(s) valid\n", len(names))
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, errs []policy.ValidationError) error {
	exit := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s.%s: %s\n", e.Code, e.Policy, e.Field, e.Message)
	}
	return exit
}
