// dnaasctl manages the DNAAS lab fabric: it discovers bridge domains from
// DNOS devices, tracks who holds which service, and deploys changes with a
// fleet-wide commit-check before anything commits.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
