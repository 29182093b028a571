package repl

// Observer receives evaluation notifications and the connection-lost signal.
// Methods are called from the dispatch goroutine, one frame at a time, and must not block.
type Observer interface {
	OnValue(ValueEvent)
	OnOutput(OutputEvent)
	OnDone(DoneEvent)
	OnError(ErrorEvent)
	OnConnectionLost(cause error)
}

// ObserverFuncs is a convenience type for building an Observer from functions.
// Nil fields are ignored.
type ObserverFuncs struct {
	Value          func(ValueEvent)
	Output         func(OutputEvent)
	Done           func(DoneEvent)
	Error          func(ErrorEvent)
	ConnectionLost func(cause error)
}

// OnValue implements Observer
func (f ObserverFuncs) OnValue(e ValueEvent) {
	if f.Value != nil {
		f.Value(e)
	}
}

// OnOutput implements Observer
func (f ObserverFuncs) OnOutput(e OutputEvent) {
	if f.Output != nil {
		f.Output(e)
	}
}

// OnDone implements Observer
func (f ObserverFuncs) OnDone(e DoneEvent) {
	if f.Done != nil {
		f.Done(e)
	}
}

// OnError implements Observer
func (f ObserverFuncs) OnError(e ErrorEvent) {
	if f.Error != nil {
		f.Error(e)
	}
}

// OnConnectionLost implements Observer
func (f ObserverFuncs) OnConnectionLost(cause error) {
	if f.ConnectionLost != nil {
		f.ConnectionLost(cause)
	}
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) OnValue(ValueEvent)     {}
func (NopObserver) OnOutput(OutputEvent)   {}
func (NopObserver) OnDone(DoneEvent)       {}
func (NopObserver) OnError(ErrorEvent)     {}
func (NopObserver) OnConnectionLost(error) {}

// MultiObserver forwards each notification to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnValue(e ValueEvent) {
	for _, o := range m {
		o.OnValue(e)
	}
}

func (m MultiObserver) OnOutput(e OutputEvent) {
	for _, o := range m {
		o.OnOutput(e)
	}
}

func (m MultiObserver) OnDone(e DoneEvent) {
	for _, o := range m {
		o.OnDone(e)
	}
}

func (m MultiObserver) OnError(e ErrorEvent) {
	for _, o := range m {
		o.OnError(e)
	}
}

func (m MultiObserver) OnConnectionLost(cause error) {
	for _, o := range m {
		o.OnConnectionLost(cause)
	}
}
