// Package connector implements the queues between stages.
//
// A Conveyor is a bounded blocking FIFO. A Connector groups one conveyor
// per worker of a stage and uses a Router to keep each stream on a single
// conveyor, which preserves per-stream order while streams run in parallel.
package connector
