package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loramesh/meshcore/internal/admin"
)

// errDestinationRequired is returned when send is invoked without --to.
var errDestinationRequired = errors.New("--to flag is required")

func sendCmd() *cobra.Command {
	var (
		destination uint16
		payload     uint32
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a new message for delivery",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if destination == 0 {
				return errDestinationRequired
			}

			req := admin.SubmitRequest{Destination: destination, Payload: payload}
			var resp admin.SubmitResponse
			if err := postJSON("/v1/submit", req, &resp); err != nil {
				return err
			}

			fmt.Printf("accepted: %v\n", resp.Accepted)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Uint16Var(&destination, "to", 0, "destination node id (required)")
	flags.Uint32Var(&payload, "payload", 0, "application payload")

	return cmd
}
