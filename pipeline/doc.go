// Package pipeline runs a graph of stages over streams of frames.
//
// Stages without upstream links are sources: they produce frames and hand
// them to the pipeline with TransmitData. Every other stage owns a
// Connector with one conveyor per worker; frames of one stream always use
// the same conveyor, so each stream is processed in order. A frame reaches
// a stage with several upstream stages once, after the last of them has
// passed it.
//
//	p := pipeline.New("demo", pipeline.WithConfig(cfg))
//	p.AddModule(src)
//	p.AddModule(sink)
//	p.LinkModules("src", "sink")
//	if err := p.Start(); err != nil {
//		return err
//	}
//	defer p.Stop()
//
// Pipelines can also be described in YAML and built from the stage
// registry with LoadDefinition and Build. A definition may embed other
// definition files as subgraphs. Profile reports per-stage and per-stream
// latency and throughput of the current run.
package pipeline
