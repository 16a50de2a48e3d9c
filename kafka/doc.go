// Package kafka moves frames through Apache Kafka with segmentio/kafka-go.
//
// Writer publishes frames as JSON records keyed by stream id, so every
// frame of a stream lands on the same partition in order. Reader consumes
// a topic and decodes records back into frames. Both share Config, which
// covers brokers, TLS, SASL, batching and timeouts.
package kafka
