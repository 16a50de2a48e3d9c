package connector

import (
	"github.com/cespare/xxhash/v2"

	"github.com/kbukum/streamkit/frame"
)

// Router picks the conveyor a frame is pushed onto. A router must send every
// frame of a stream to the same conveyor or per-stream order is lost.
type Router interface {
	Route(f *frame.Frame, conveyors int) int
}

// RouterFunc adapts a function to Router.
type RouterFunc func(f *frame.Frame, conveyors int) int

func (fn RouterFunc) Route(f *frame.Frame, conveyors int) int { return fn(f, conveyors) }

// IndexRouter routes by the pipeline-assigned stream index. Streams get the
// lowest free index on arrival, so a handful of live streams spread evenly
// over the conveyors. Frames without an index fall back to hashing.
type IndexRouter struct{}

func (IndexRouter) Route(f *frame.Frame, conveyors int) int {
	idx := f.StreamIndex()
	if idx < 0 {
		return HashRouter{}.Route(f, conveyors)
	}
	return idx % conveyors
}

// HashRouter routes by a hash of the stream id, stable across restarts.
type HashRouter struct{}

func (HashRouter) Route(f *frame.Frame, conveyors int) int {
	return int(xxhash.Sum64String(f.StreamID) % uint64(conveyors))
}

// RouterByName maps a configuration value to a Router. Unknown names yield nil.
func RouterByName(name string) Router {
	switch name {
	case "", "index":
		return IndexRouter{}
	case "hash":
		return HashRouter{}
	default:
		return nil
	}
}
