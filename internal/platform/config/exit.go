package config

import (
	"fmt"
	"os"
)

// Fatalf prints an "otherworlds:"-prefixed message to stderr and exits
// with status 1. CLI entry points use it for unrecoverable startup errors.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "otherworlds: "+format+"\n", args...)
	os.Exit(1)
}
