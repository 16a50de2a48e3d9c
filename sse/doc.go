// Package sse streams pipeline activity to HTTP clients as Server-Sent
// Events.
//
// A Hub fans messages out to connected clients. Each client may carry a
// stream filter, a glob matched against the stream id of a message;
// messages without a stream id reach every client. Delivery never blocks
// the publisher: a client whose buffer is full misses the message.
//
//	hub := sse.NewHub()
//	go hub.Run()
//	bus.AddWatcher(sse.EventWatcher(hub))
//	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
//		sse.ServeSSE(hub, w, r, uuid.NewString(), r.URL.Query().Get("stream"))
//	})
package sse
