// Package registry creates stages by class name so pipelines can be built
// from configuration documents.
//
// Stage packages register their classes from init:
//
//	func init() {
//	    registry.Register("Passthrough", "forwards frames unchanged",
//	        func() module.Module { return &Passthrough{} })
//	}
//
// Registering a name twice keeps the first constructor. CreateObject
// returns nil for unknown names; Require reports them all as one error so a
// builder can fail before creating anything.
package registry
