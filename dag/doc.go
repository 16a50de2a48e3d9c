// Package dag provides the graph algorithms the pipeline relies on:
// dependency levels (Kahn), cycle and dangling-edge detection, and
// root/leaf/reachability queries over string-named nodes.
package dag
