// Package component manages the lifecycle of the long-lived parts of a
// binary. Components start in registration order and stop in reverse.
package component
