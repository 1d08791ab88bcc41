// Package probe checks whether the ledger can be brought up from the current
// ENV, for use as container liveness and readiness checks.
package probe

import (
	"github.com/spf13/cobra"

	"github/chapool/go-ledger/internal/util/command"
)

const (
	verboseFlag string = "verbose"
)

func New() *cobra.Command {
	cmd := command.NewSubcommandGroup("probe",
		newLiveness(),
		newReadiness(),
	)
	cmd.Short = "Health probes for the ledger"
	cmd.Long = `Health probes for the ledger.

liveness wires the store, fee collector and settlement modules from ENV.
readiness additionally requires the event journal database to answer.
Both exit non-zero on failure.`

	return cmd
}
