package main

import (
	"fmt"
	"strings"

	xferrors "github.com/alxayo/go-xfer/internal/errors"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user-supplied flag and positional-argument values prior to
// translation into sender.Config, so validation happens once, ahead of any
// network I/O.
type cliConfig struct {
	sourcePath string
	address    string
	udpPort    int
	tcpPort    int
	destPath   string
	compress   bool
	verbose    bool
}

// applyPositional folds the "SRC HOST:DEST" positional arguments into cfg,
// consuming SRC only if -f/--file did not already supply it. The HOST
// portion, if non-empty, overrides -a/--address; an optional "USER@" prefix
// is accepted and discarded, since this transfer has no login identity of
// its own.
func (cfg *cliConfig) applyPositional(args []string) error {
	if cfg.sourcePath == "" {
		if len(args) == 0 {
			return xferrors.NewUsageError("sender.flags", fmt.Errorf("missing SRC: provide it positionally or via -f/--file"))
		}
		cfg.sourcePath = args[0]
		args = args[1:]
	}
	if len(args) == 0 {
		return xferrors.NewUsageError("sender.flags", fmt.Errorf("missing HOST:DEST argument"))
	}
	host, destPath, err := splitHostDest(args[0])
	if err != nil {
		return err
	}
	if host != "" {
		cfg.address = host
	}
	cfg.destPath = destPath
	return validateDestArg(destPath)
}

// splitHostDest parses "[USER@]HOST:PATH", returning an empty host when the
// segment before ':' is empty (the caller then keeps -a/--address).
func splitHostDest(s string) (host, path string, err error) {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return "", "", xferrors.NewUsageError("sender.flags", fmt.Errorf("malformed destination %q: expected HOST:PATH", s))
	}
	return s[:colon], s[colon+1:], nil
}

// validateDestArg rejects a destination path ending in an unescaped '/':
// the protocol always names a file, never a directory.
func validateDestArg(destPath string) error {
	if strings.HasSuffix(destPath, "/") && !strings.HasSuffix(destPath, "\\/") {
		return destArgError{path: destPath}
	}
	return nil
}

// destArgError marks a bad-destination usage error distinctly from a plain
// usage error, so main can map it to exit code 3 instead of 1.
type destArgError struct{ path string }

func (e destArgError) Error() string {
	return fmt.Sprintf("destination %q has an unescaped trailing '/'", e.path)
}
