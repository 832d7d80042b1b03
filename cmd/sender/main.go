package main

import (
	"errors"
	"fmt"
	"os"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps a failure to its exit code: 3 for a bad destination
// (missing path component, unescaped trailing '/'), 1 for anything else
// (usage, missing source file, protocol failure).
func exitCodeFor(err error) int {
	var pathErr *xferrors.PathError
	if errors.As(err, &pathErr) {
		fmt.Fprintf(os.Stderr, "the folder %q does not exist\n", pathErr.Component)
		return 3
	}
	var destErr destArgError
	if errors.As(err, &destErr) {
		fmt.Fprintln(os.Stderr, err)
		return 3
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
