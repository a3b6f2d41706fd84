package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loramesh/meshcore/internal/admin"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node identity and table occupancy",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var status admin.StatusResponse
			if err := getJSON("/v1/status", &status); err != nil {
				return err
			}

			out, err := formatStatus(status, outputFormat)
			if err != nil {
				return fmt.Errorf("format status: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}
