// Package bootstrap runs a streamkit daemon: typed configuration, the
// component registry, startup and shutdown hooks, and graceful shutdown on
// a signal or on a component's stop request.
package bootstrap
