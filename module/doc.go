// Package module defines the contract every pipeline stage implements.
//
// Synchronous stages embed Base and return Forward from Process; the
// pipeline then hands the frame downstream. Stages that produce output on
// their own schedule (sources, batching, async I/O) embed BaseEx and call
// TransmitData; the pipeline runs a dedicated goroutine that delivers what
// they transmit.
//
//	type Scale struct{ module.Base }
//
//	func (s *Scale) Open(p module.ParamSet) error { return nil }
//	func (s *Scale) Close()                       {}
//	func (s *Scale) Process(ctx context.Context, f *frame.Frame) int {
//	    return module.Forward
//	}
package module
