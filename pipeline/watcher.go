package pipeline

import (
	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/logger"
)

// defaultWatcher is the oldest watcher on the bus; watchers added later
// see events first and may intercept them.
func (p *Pipeline) defaultWatcher(e eventbus.Event) eventbus.HandleFlag {
	fields := logger.Fields(
		logger.FieldStage, e.Module,
		logger.FieldEventType, e.Type.String(),
	)
	if e.StreamID != "" {
		fields[logger.FieldStreamID] = e.StreamID
	}

	switch e.Type {
	case eventbus.Error:
		p.log.Error(e.Message, fields)
		p.msgs.send(StreamMsg{Type: MsgError, StreamID: e.StreamID, Module: e.Module})
		return eventbus.HandleSynced
	case eventbus.Warning:
		p.log.Warn(e.Message, fields)
		return eventbus.HandleSynced
	case eventbus.Stop:
		p.log.Info("stop requested: "+e.Message, fields)
		return eventbus.HandleStop
	case eventbus.EOS:
		p.log.Debug("stage forwarded eos", fields)
		return eventbus.HandleSynced
	case eventbus.StreamError:
		p.log.Warn("stream error: "+e.Message, fields)
		p.msgs.send(StreamMsg{Type: MsgStreamError, StreamID: e.StreamID, Module: e.Module})
		return eventbus.HandleSynced
	case eventbus.Info:
		p.log.Info(e.Message, fields)
		return eventbus.HandleNull
	default:
		p.log.Error("invalid event: "+e.Message, fields)
		return eventbus.HandleNull
	}
}
