package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loramesh/meshcore/internal/admin"
)

func neighborsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "neighbors",
		Short: "List the tracked neighbor table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp admin.NeighborsResponse
			if err := getJSON("/v1/neighbors", &resp); err != nil {
				return err
			}

			out, err := formatNeighbors(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format neighbors: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}
