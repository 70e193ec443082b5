// Package feed streams price ticks to WebSocket subscribers.
//
// Hub is registered as a price engine observer. Every committed tick is
// encoded once and fanned out to per-client send buffers; a client whose
// buffer is full is disconnected rather than slowing the broadcast.
package feed
