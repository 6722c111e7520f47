// Command region-session is a standalone driver for the region UDP
// session layer: it can open a single region circuit and hold it open
// (connect), expose a metrics/health surface without opening a region
// circuit (serve), or print the resolved configuration (status).
package main

import (
	"fmt"
	"os"

	"github.com/metaverse-go/region-session/cmd/region-session/internal/app"
)

const version = "0.1.0"

func main() {
	if err := app.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
