package cmd

import (
	"fmt"
	"io"

	"github.com/atotto/clipboard"
)

// copySecret puts s on the system clipboard. Failing to reach the clipboard
// is not fatal; the caller has already printed the value.
func copySecret(w io.Writer, s, what string) {
	if err := clipboard.WriteAll(s); err != nil {
		fmt.Fprintf(w, "could not copy %s to clipboard: %v\n", what, err)
		return
	}
	fmt.Fprintf(w, "%s copied to clipboard\n", what)
}
