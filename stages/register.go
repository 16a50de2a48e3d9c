package stages

import (
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/registry"
)

// Class names under which the built-in stages are registered.
const (
	ClassFeeder       = "Feeder"
	ClassTickerSource = "TickerSource"
	ClassPassthrough  = "Passthrough"
	ClassAsyncRelay   = "AsyncRelay"
	ClassCollector    = "Collector"
	ClassLogSink      = "LogSink"
	ClassKafkaSink    = "KafkaSink"
	ClassKafkaSource  = "KafkaSource"
	ClassRedisSink    = "RedisSink"
	ClassThrottle     = "Throttle"
	ClassSource       = "Source"
)

func init() {
	Register(registry.Default)
}

// Register adds the built-in stages to reg. Classes already present keep
// their existing constructor.
func Register(reg *registry.Registry) {
	for _, info := range []registry.ClassInfo{
		{Name: ClassFeeder, Description: "source fed by application code", Constructor: func() module.Module { return NewFeeder() }},
		{Name: ClassTickerSource, Description: "source emitting frames per stream on a fixed interval", Constructor: func() module.Module { return NewTickerSource() }},
		{Name: ClassPassthrough, Description: "forwards frames unchanged", Constructor: func() module.Module { return NewPassthrough() }},
		{Name: ClassAsyncRelay, Description: "forwards frames from its own transmit queue", Constructor: func() module.Module { return NewAsyncRelay() }},
		{Name: ClassCollector, Description: "sink keeping received frames", Constructor: func() module.Module { return NewCollector() }},
		{Name: ClassLogSink, Description: "sink logging every frame", Constructor: func() module.Module { return NewLogSink() }},
		{Name: ClassKafkaSink, Description: "sink publishing frames to a Kafka topic", Constructor: func() module.Module { return NewKafkaSink() }},
		{Name: ClassKafkaSource, Description: "source consuming frames from a Kafka topic", Constructor: func() module.Module { return NewKafkaSource() }},
		{Name: ClassThrottle, Description: "limits the frame rate through it", Constructor: func() module.Module { return NewThrottle() }},
		{Name: ClassSource, Description: "source running one handler per stream", Constructor: func() module.Module { return NewSource() }},
		{Name: ClassRedisSink, Description: "sink appending frames to Redis streams", Constructor: func() module.Module { return NewRedisSink() }},
	} {
		if !reg.Has(info.Name) {
			reg.Register(info)
		}
	}
}
