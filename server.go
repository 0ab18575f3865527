package tls13d

// ServerHandshakeCallback receives the outcome of Server.Accept, plus the
// version-fallback handoff (spec.md §4.1). At most one of the three
// methods fires for a given Accept call.
type ServerHandshakeCallback interface {
	HandshakeSuccess(s *Server)
	HandshakeError(s *Server, err error)
	// HandshakeAttemptFallback is called when the client asked for a
	// pre-1.3 version. clientHello is the exact bytes read from the
	// transport so far (the original ClientHello plus anything else that
	// had already arrived). Once this fires, the Server relinquishes the
	// transport: it will not read from or write to it again.
	HandshakeAttemptFallback(s *Server, clientHello []byte)
}

// Server drives a TLS 1.3 connection from the server side (spec.md
// §4.1-§4.6). Its action vocabulary differs from Client's only in that it
// never emits early-data-write actions and can hand the connection off on
// a version fallback.
type Server struct {
	base

	handshakeCB ServerHandshakeCallback

	holdWrites bool
	heldWrites []PendingEarlyWrite
}

var _ sideHooks = (*Server)(nil)

// NewServer constructs a Server over transport, driven by machine and
// scheduled on loop.
func NewServer(transport Transport, config *Config, machine StateMachine, loop *EventLoop) *Server {
	b := newBase(false, transport, config, machine)
	b.loop = loop
	return &Server{base: b}
}

// Accept starts the handshake from the server side. cb is invoked exactly
// once with success, error, or a fallback handoff.
func (s *Server) Accept(cb ServerHandshakeCallback) {
	s.handshakeCB = cb
	s.transport.AttachEventLoop(s.loop)
	s.transport.SetReadCallback(&ReadCallback{
		OnData:  func(d []byte) { s.onSocketData(d, s) },
		OnEOF:   func() { s.onTransportEOF(s) },
		OnError: func(e error) { s.onTransportError(e, s) },
	})
	s.state.Phase = PhaseServerHandshake
	oc := s.machine.Accept(&s.state)
	s.runOutcome(oc, s, nil)
}

// Write sends bytes once the connection is established, holding (in
// order) any writes issued earlier (spec.md §4.2).
func (s *Server) Write(bytes []byte, cb func(error), flags WriteFlags) {
	s.dispatch(func() {
		if s.state.Phase.terminal() {
			if cb != nil {
				cb(newWriteErr(0, s.lastError()))
			}
			return
		}
		if s.holdWrites || s.state.Phase != PhaseEstablished {
			s.holdWrites = true
			s.heldWrites = append(s.heldWrites, PendingEarlyWrite{Bytes: bytes, Callback: cb, Flags: flags})
			return
		}
		oc := s.machine.AppWrite(&s.state, AppWrite{Bytes: bytes, Callback: cb, Flags: flags})
		s.runOutcome(oc, s, nil)
	})
}

func (s *Server) SetReadCallback(cb *ReadCallback) { s.setReadCallback(cb) }

func (s *Server) Close()          { s.closeGraceful(s) }
func (s *Server) CloseNow()       { s.closeImmediate(false, s) }
func (s *Server) CloseWithReset() { s.closeImmediate(true, s) }

func (s *Server) Good() bool         { return s.good() }
func (s *Server) Connecting() bool   { return s.connecting() }
func (s *Server) Error() bool        { return s.errored() }
func (s *Server) IsReplaySafe() bool { return s.isReplaySafe() }
func (s *Server) PskResumed() bool   { return s.state.PskType == PskTypeResumption }

func (s *Server) ApplicationProtocol() string {
	if !s.state.HasALPN {
		return ""
	}
	return s.state.ALPN
}

func (s *Server) SelfCert() Cert { return s.state.ServerCert }
func (s *Server) PeerCert() Cert { return s.state.ClientCert }

// onSpecial handles the server-only action vocabulary: handshake
// completion and the version-fallback handoff.
func (s *Server) onSpecial(a Action) bool {
	switch act := a.(type) {
	case ReportHandshakeSuccess:
		s.state.Phase = PhaseEstablished
		driverLog("server").WithField("cipher", s.state.Cipher).Info("handshake established")
		if s.handshakeCB != nil {
			cb := s.handshakeCB
			s.handshakeCB = nil
			cb.HandshakeSuccess(s)
		}
		s.flushHeldWrites()
		s.signalReplaySafe()
		return false

	case ReportEarlyHandshakeSuccess:
		s.state.Phase = PhaseEarlyData
		if s.handshakeCB != nil {
			cb := s.handshakeCB
			s.handshakeCB = nil
			cb.HandshakeSuccess(s)
		}
		return false

	case AttemptVersionFallback:
		combined := append(append([]byte{}, act.ClientHello...), s.takeQueuedReadBytes()...)
		driverLog("server").WithField("bytes", len(combined)).Info("client requested pre-1.3 fallback")
		s.terminated = true
		if s.handshakeCB != nil {
			cb := s.handshakeCB
			s.handshakeCB = nil
			cb.HandshakeAttemptFallback(s, combined)
		}
		return true

	default:
		return false
	}
}

func (s *Server) onError(e error) {
	if s.handshakeCB != nil {
		cb := s.handshakeCB
		s.handshakeCB = nil
		cb.HandshakeError(s, e)
	}
	s.rejectHeldWrites(newWriteErr(0, e))
	if s.appReadCB != nil && s.appReadCB.OnError != nil {
		s.appReadCB.OnError(e)
	}
}

func (s *Server) failPendingOnClose() {
	s.rejectHeldWrites(newWriteErr(0, ErrClosed))
	if s.handshakeCB != nil {
		cb := s.handshakeCB
		s.handshakeCB = nil
		cb.HandshakeError(s, ErrClosed)
	}
}

func (s *Server) flushHeldWrites() {
	writes := s.heldWrites
	s.heldWrites = nil
	s.holdWrites = false
	s.flushNext(writes)
}

func (s *Server) flushNext(writes []PendingEarlyWrite) {
	if len(writes) == 0 {
		return
	}
	w := writes[0]
	rest := writes[1:]
	oc := s.machine.AppWrite(&s.state, AppWrite{Bytes: w.Bytes, Callback: w.Callback, Flags: w.Flags})
	s.runOutcome(oc, s, func() { s.flushNext(rest) })
}

func (s *Server) rejectHeldWrites(err error) {
	writes := s.heldWrites
	s.heldWrites = nil
	s.holdWrites = false
	for _, w := range writes {
		if w.Callback != nil {
			w.Callback(err)
		}
	}
}
