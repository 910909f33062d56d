// Command vaine runs treatment-effect analyses over clustered latent
// representations, either as a one-shot batch or as an HTTP session server.
package main

import (
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitFunc(1)
	}
}
