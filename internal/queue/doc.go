// Package queue provides a bounded FIFO that grows on demand.
//
// The queue starts small, doubles its backing array when it reaches 70%
// full and refuses new items once MaxCapacity items are pending.
// Producers never block; consumers block in Receive until an item
// arrives or the queue is closed.
package queue
