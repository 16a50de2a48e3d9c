// Package eventbus carries out-of-band notifications (errors, warnings,
// end-of-stream, stop requests) from stages to a single consumer goroutine.
//
// Posting never stalls the data path: a full queue is retried briefly and
// the event is then dropped and counted. Once the bus is stopped, posts
// fail and nothing posted afterwards is ever delivered.
package eventbus
