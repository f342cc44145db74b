package build

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// FuncSink adapts a function to ProgressSink.
type FuncSink func(Event)

func (f FuncSink) OnEvent(evt Event) {
	if f != nil {
		f(evt)
	}
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
