package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/loramesh/meshcore/internal/admin"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

func formatStatus(status admin.StatusResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(status)
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NODE-ID\tNEIGHBORS\tPENDING-ACKS\tQUEUE-LEN")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", status.NodeID, status.NeighborCount, status.PendingAcks, status.QueueLen)
		if err := w.Flush(); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatNeighbors(resp admin.NeighborsResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(resp)
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NODE-ID\tRSSI\tLAST-HEARD")
		for _, n := range resp.Neighbors {
			lastHeard := time.UnixMilli(n.LastHeard).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, "%d\t%d\t%s\n", n.NodeID, n.RSSI, lastHeard)
		}
		if err := w.Flush(); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
