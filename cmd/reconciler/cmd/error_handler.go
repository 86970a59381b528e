package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"ledger-reconciliation-engine/pkg/errors"
	"ledger-reconciliation-engine/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-facing message for the error and returns the
// process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if engineErr, ok := errors.AsEngineError(err); ok {
		return h.handleEngineError(engineErr)
	}

	var partial *errors.PartialApplyError
	if stderrors.As(err, &partial) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", partial.Error())
		fmt.Fprintln(os.Stderr, "Suggestion: re-run unmatch-group on the named group to repair it")
		return 5
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// handleEngineError prints category-aware detail for an EngineError
func (h *CLIErrorHandler) handleEngineError(err *errors.EngineError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return exitCode(err.Category)
}

func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryValidation:
		return "Check the command arguments and flag values."
	case errors.CategoryNotFound:
		return "Check that the referenced transaction or group id exists."
	case errors.CategoryStore:
		return "Check that the database file is accessible and not corrupted."
	case errors.CategoryReconciliation:
		return "The reconciliation state may need manual repair; see the context above."
	default:
		return "An unexpected error occurred. Re-run with --verbose for details."
	}
}

func exitCode(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return 2
	case errors.CategoryNotFound:
		return 3
	case errors.CategoryStore:
		return 4
	case errors.CategoryReconciliation:
		return 5
	default:
		return 1
	}
}
