// Package redis appends frames to Redis streams with go-redis.
//
// Each pipeline stream maps to one Redis stream key. Entries carry the
// frame as a JSON record in the "frame" field, plus the stream id and an
// "eos" marker so consumers can follow a stream without decoding bodies.
package redis
