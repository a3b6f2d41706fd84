// Package mesh implements the core LoRa mesh routing/link layer: the
// packet codec, neighbor table, duplicate/ACK-replay/route/ALT histories,
// pending-ACK table, transmit queue and scheduler, receive dispatcher,
// periodic HELLO driver, and alternate-route logic.
//
// The subsystem is single-threaded and cooperative: Node.Tick and
// Node.Submit are the only entry points that mutate state, and Tick is
// meant to be called repeatedly from one goroutine. Radio reception/transmission completion is reported
// through the radio package's narrow flag-based shim, never by blocking
// the tick loop.
package mesh
