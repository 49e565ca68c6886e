package strand

// subscriptions tracks pub/sub state independently of the regular reply
// queue: message fan-out is keyed by channel or pattern name, and
// unsubscribe acknowledgments are matched by name rather than queue order
// because pushed messages interleave freely with the command stream.
//
// Like the rest of the connection, the registry is touched only by the
// driving goroutine and needs no locking.
type subscriptions struct {
	// replies queues handlers given to unsubscribe commands; each node's
	// pendingSubs counts the acknowledgments still expected for it.
	replies callbackQueue

	channels map[string]*callback
	patterns map[string]*callback

	// pendingUnsubs counts unsubscribe acknowledgments the server still
	// owes us, across all outstanding unsubscribe commands.
	pendingUnsubs int
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		channels: make(map[string]*callback),
		patterns: make(map[string]*callback),
	}
}

func (s *subscriptions) registry(pattern bool) map[string]*callback {
	if pattern {
		return s.patterns
	}
	return s.channels
}

// add registers a handler for name, or refreshes an existing entry when the
// application subscribes to the same name again.
func (s *subscriptions) add(pattern bool, name string, h ReplyHandler) {
	reg := s.registry(pattern)
	if e, ok := reg[name]; ok {
		e.fn = h
		e.pendingSubs++
		e.unsubSent = false
		return
	}
	reg[name] = &callback{fn: h, pendingSubs: 1}
}

func (s *subscriptions) get(pattern bool, name string) (*callback, bool) {
	e, ok := s.registry(pattern)[name]
	return e, ok
}

func (s *subscriptions) remove(pattern bool, name string) {
	delete(s.registry(pattern), name)
}

// names returns the currently registered channel or pattern names.
func (s *subscriptions) names(pattern bool) []string {
	reg := s.registry(pattern)
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	return out
}

func (s *subscriptions) empty() bool {
	return len(s.channels) == 0 && len(s.patterns) == 0
}
