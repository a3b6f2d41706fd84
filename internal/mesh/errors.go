package mesh

import "errors"

var (
	// ErrNoRoute indicates no next hop could be found for a submitted
	// destination.
	ErrNoRoute = errors.New("mesh: no route to destination")

	// ErrQueueFull indicates the transmit queue had no free slot for a
	// newly submitted message.
	ErrQueueFull = errors.New("mesh: transmit queue full")
)
