// Package frame defines the unit of work that flows through a pipeline.
//
// A Frame belongs to one stream and carries a payload plus a Collection of
// auxiliary values. End-of-stream is signalled in-band with an EOS frame so
// every stage sees the boundary in order with the data before it.
package frame
