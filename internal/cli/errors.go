package cli

import (
	"fmt"
	"io"

	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
)

// PrintError prints an error with appropriate formatting.
// If the error is a BcfError, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error, verbose bool) {
	if bcfErr := bcferrors.AsBcfError(err); bcfErr != nil {
		_, _ = fmt.Fprintln(w, bcfErr.UserMessage())
		if verbose {
			// In verbose mode, also print the error code and cause
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", bcfErr.Code)
			if bcfErr.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", bcfErr.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
