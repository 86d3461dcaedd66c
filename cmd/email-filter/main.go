// Command email-filter removes suppressed addresses from a client list,
// either in one batch run or through a local upload form.
package main

import (
	"errors"
	"os"

	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %s\n", cliMessage(err))
		os.Exit(1)
	}
}

// cliMessage shows user errors the way the upload form does. Anything else
// is printed in full since the CLI runs locally.
func cliMessage(err error) string {
	for _, target := range []error{
		table.ErrFormat, table.ErrSchema, table.ErrEncoding,
		filtering.ErrMissingInput, filtering.ErrNoDatabase,
	} {
		if errors.Is(err, target) {
			return filtering.UserMessage(err)
		}
	}
	return err.Error()
}
