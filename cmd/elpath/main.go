// Command elpath inspects and moves files across local, proxy and object
// store paths, and reports on checkpoint roots.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "elpath:", err)
		os.Exit(1)
	}
}
