// Command tspipe runs the ingest/delivery pipeline: a UDP ingest listener,
// the session manager and stream runners, and the LL-HLS HTTP surface,
// wired together as one supervised group per spec §6, the way the
// teacher's main.go hands off to cmd.Execute() with a top-level panic
// recovery wrapper.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tspipe/tspipe/internal/errs"
)

func main() {
	defer errs.Recover(log.Logger, "main")
	os.Exit(Execute())
}
