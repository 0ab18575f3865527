package tls13d

import (
	"bytes"
	"context"
	"net"

	"golang.org/x/net/idna"
)

// ClientHandshakeCallback receives the outcome of Client.Connect. Exactly
// one of the two methods fires, exactly once, for a given Connect call
// (spec.md §4.1, §7's callback-fires-once rule). A dial failure (or a
// misuse error raised before the state machine is ever entered) also
// fires HandshakeError, since the driver exposes no separate connect
// callback (spec.md §4.1).
type ClientHandshakeCallback interface {
	HandshakeSuccess(c *Client)
	HandshakeError(c *Client, err error)
}

// Dialer opens the network connection a Client dials when constructed
// without a live transport. Config.Dial defaults to net.Dialer's
// DialContext.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Client drives a TLS 1.3 connection from the client side: it turns
// application calls (connect, write, close) into StateMachine events and
// StateMachine actions into transport I/O and application callbacks
// (spec.md §4.1-§4.6). It owns no cryptography; all handshake logic lives
// in the injected StateMachine.
type Client struct {
	base

	handshakeCB     ClientHandshakeCallback
	earlyDataPolicy EarlyDataRejectionPolicy

	pskIdentityUsed string

	// connectStarted latches true on the first Connect call; a repeat
	// call fails with ErrAlreadyOpen instead of re-entering the state
	// machine (spec.md §4.1).
	connectStarted bool

	earlyDataAttempted bool
	maxEarlyDataSize   uint32
	earlyDataSent      uint32

	// sentEarlyWrites records every write already handed to the state
	// machine as EarlyAppWrite, so a later early-data rejection can
	// resend them, concatenated, as a single post-handshake AppWrite
	// (spec.md §8 S4).
	sentEarlyWrites []PendingEarlyWrite

	// holdWrites is sticky: once one write is held (budget exhausted, or
	// issued before the handshake reached a phase that accepts writes),
	// every later write is held too, to preserve send order across the
	// early/post-handshake boundary (spec.md §4.3).
	holdWrites bool
	heldWrites []PendingEarlyWrite
}

var _ sideHooks = (*Client)(nil)

// NewClient constructs a Client, driven by machine and scheduled on loop.
// transport may be nil, in which case Connect dials address itself
// before entering the state machine (spec.md §4.1's "if constructed
// without a live transport, first dials address").
func NewClient(transport Transport, config *Config, machine StateMachine, loop *EventLoop) *Client {
	b := newBase(true, transport, config, machine)
	b.loop = loop
	return &Client{base: b}
}

// Connect starts the handshake against serverName, offering pskIdentity
// for resumption/0-RTT if non-empty. cb is invoked exactly once when the
// handshake succeeds or fails.
//
// If the Client was constructed with a live transport, address must be
// empty; supplying one on an already-open driver reports ErrAlreadyOpen.
// If it was constructed without one, address is required and is dialed
// via Config.Dial before the handshake begins; a dial failure reports
// through cb and the state machine is never entered (spec.md §4.1).
// A second Connect call on the same driver always reports ErrAlreadyOpen.
func (c *Client) Connect(cb ClientHandshakeCallback, address, serverName, pskIdentity string) {
	if c.connectStarted {
		if cb != nil {
			cb.HandshakeError(c, ErrAlreadyOpen)
		}
		return
	}
	c.connectStarted = true

	if c.transport == nil {
		if address == "" {
			if cb != nil {
				cb.HandshakeError(c, ErrNoUnderlyingSocket)
			}
			return
		}
		c.dialAndConnect(cb, address, serverName, pskIdentity)
		return
	}
	if address != "" {
		if cb != nil {
			cb.HandshakeError(c, ErrAlreadyOpen)
		}
		return
	}
	c.beginHandshake(cb, serverName, pskIdentity)
}

// dialAndConnect dials address on a background goroutine, mirroring
// NetTransport's own background reader, and resumes on the owning
// EventLoop once the dial completes, so a connection that never opens
// never raises a single state-machine event.
func (c *Client) dialAndConnect(cb ClientHandshakeCallback, address, serverName, pskIdentity string) {
	dial := c.config.Dial
	go func() {
		conn, err := dial(context.Background(), "tcp", address)
		resume := func() {
			if err != nil {
				if cb != nil {
					cb.HandshakeError(c, err)
				}
				return
			}
			c.transport = NewNetTransport(conn)
			c.beginHandshake(cb, serverName, pskIdentity)
		}
		if c.loop != nil {
			c.loop.Post(resume)
			return
		}
		resume()
	}()
}

// beginHandshake starts the handshake once a live transport is in place.
func (c *Client) beginHandshake(cb ClientHandshakeCallback, serverName, pskIdentity string) {
	c.handshakeCB = cb
	c.pskIdentityUsed = pskIdentity
	c.transport.AttachEventLoop(c.loop)
	c.transport.SetReadCallback(&ReadCallback{
		OnData:  func(d []byte) { c.onSocketData(d, c) },
		OnEOF:   func() { c.onTransportEOF(c) },
		OnError: func(e error) { c.onTransportError(e, c) },
	})
	c.state.Phase = PhaseClientHandshake
	opts := ConnectOptions{ServerName: normalizeServerName(serverName), PSKIdentity: pskIdentity, NextProtos: c.config.NextProtos}
	oc := c.machine.Connect(&c.state, opts)
	c.runOutcome(oc, c, nil)
}

// Write sends bytes once the connection can carry them: immediately as
// 0-RTT data if early data is currently open, immediately as ordinary
// application data once established, held (in order) until one of those
// becomes true, or failed immediately if the connection is already down
// (spec.md §4.2, §4.3, §8 S2).
func (c *Client) Write(bytes []byte, cb func(error), flags WriteFlags) {
	c.dispatch(func() {
		if c.state.Phase.terminal() {
			if cb != nil {
				cb(newWriteErr(0, c.lastError()))
			}
			return
		}
		switch {
		case c.holdWrites:
			c.heldWrites = append(c.heldWrites, PendingEarlyWrite{Bytes: bytes, Callback: cb, Flags: flags})
		case c.state.Phase == PhaseEarlyData:
			remaining := c.maxEarlyDataSize - c.earlyDataSent
			if uint32(len(bytes)) > remaining {
				c.holdWrites = true
				c.heldWrites = append(c.heldWrites, PendingEarlyWrite{Bytes: bytes, Callback: cb, Flags: flags})
				return
			}
			c.earlyDataSent += uint32(len(bytes))
			c.sentEarlyWrites = append(c.sentEarlyWrites, PendingEarlyWrite{Bytes: bytes, Callback: cb, Flags: flags})
			oc := c.machine.EarlyAppWrite(&c.state, EarlyAppWrite{Bytes: bytes, Callback: cb, Flags: flags})
			c.runOutcome(oc, c, nil)
		case c.state.Phase == PhaseEstablished:
			oc := c.machine.AppWrite(&c.state, AppWrite{Bytes: bytes, Callback: cb, Flags: flags})
			c.runOutcome(oc, c, nil)
		default:
			c.holdWrites = true
			c.heldWrites = append(c.heldWrites, PendingEarlyWrite{Bytes: bytes, Callback: cb, Flags: flags})
		}
	})
}

func (c *Client) SetReadCallback(cb *ReadCallback) { c.setReadCallback(cb) }

// SetReplaySafetyCallback registers cb to fire the first time this
// connection is confirmed safe against 0-RTT replay. If that has already
// happened, cb fires immediately (spec.md §4.4).
func (c *Client) SetReplaySafetyCallback(cb func()) {
	c.replayCB = cb
	if c.replaySafe && cb != nil {
		cb()
	}
}

func (c *Client) SetEarlyDataRejectionPolicy(p EarlyDataRejectionPolicy) { c.earlyDataPolicy = p }

func (c *Client) Close()          { c.closeGraceful(c) }
func (c *Client) CloseNow()       { c.closeImmediate(false, c) }
func (c *Client) CloseWithReset() { c.closeImmediate(true, c) }

func (c *Client) Good() bool         { return c.good() }
func (c *Client) Connecting() bool   { return c.connecting() }
func (c *Client) Error() bool        { return c.errored() }
func (c *Client) IsReplaySafe() bool { return c.isReplaySafe() }
func (c *Client) PskResumed() bool   { return c.state.PskType == PskTypeResumption }

func (c *Client) ApplicationProtocol() string {
	if !c.state.HasALPN {
		return ""
	}
	return c.state.ALPN
}

func (c *Client) SelfCert() Cert { return c.state.ClientCert }
func (c *Client) PeerCert() Cert { return c.state.ServerCert }

// onSpecial handles the client-only action vocabulary: full handshake
// completion (with its early-data acceptance/rejection fork), the
// early-data window opening, and per-write early-data rejection.
func (c *Client) onSpecial(a Action) bool {
	switch act := a.(type) {
	case ReportHandshakeSuccess:
		c.state.Phase = PhaseEstablished
		driverLog("client").WithFields(map[string]interface{}{
			"cipher":              c.state.Cipher,
			"early_data_accepted": act.EarlyDataAccepted,
		}).Info("handshake established")
		if c.handshakeCB != nil {
			cb := c.handshakeCB
			c.handshakeCB = nil
			cb.HandshakeSuccess(c)
		}
		switch {
		case act.EarlyDataAccepted:
			c.acceptEarlyData()
		case c.earlyDataAttempted:
			c.rejectEarlyData()
		default:
			// No 0-RTT was ever attempted on this connection: an
			// ordinary handshake becomes replay-safe as soon as it
			// establishes (spec.md §8 S1).
			c.signalReplaySafe()
		}
		return false

	case ReportEarlyHandshakeSuccess:
		c.earlyDataAttempted = true
		c.maxEarlyDataSize = act.MaxEarlyDataSize
		c.state.Phase = PhaseEarlyData
		// In the early-data flow, handshake_success fires here rather
		// than waiting for the full handshake; a later ReportError only
		// ever reaches the read callback from this point on (spec.md §8
		// Testable Property 2).
		if c.handshakeCB != nil {
			cb := c.handshakeCB
			c.handshakeCB = nil
			cb.HandshakeSuccess(c)
		}
		return false

	case ReportEarlyWriteFailed:
		// The write never reached the wire as 0-RTT data, but that is not
		// itself an error the application should see: pop it from the
		// issued-early set (spec.md §4.2/§4.3) and signal success, so the
		// same bytes aren't later double-counted by a resend triggered by
		// an eventual ReportHandshakeSuccess{false}. The entry removed is the
		// first one whose bytes equal the reported write's bytes.
		for i, w := range c.sentEarlyWrites {
			if bytes.Equal(w.Bytes, act.Write.Bytes) {
				c.sentEarlyWrites = append(c.sentEarlyWrites[:i], c.sentEarlyWrites[i+1:]...)
				break
			}
		}
		if act.Write.Callback != nil {
			act.Write.Callback(nil)
		}
		return false

	default:
		return false
	}
}

// acceptEarlyData is the S3 path: nothing to resend, held writes flush as
// ordinary application data, then the connection is replay-safe.
func (c *Client) acceptEarlyData() {
	c.sentEarlyWrites = nil
	c.flushHeldWrites()
	c.signalReplaySafe()
}

// rejectEarlyData is the S4/S5/S6 fork (spec.md §4.3). Under
// FatalConnectionError the connection is always torn down. Under
// AutomaticResend a fatal teardown only happens if early data actually
// went on the wire AND the achieved parameters are incompatible with what
// was promised; otherwise whatever was sent (possibly nothing) is resent
// as ordinary application data. The PSK is always invalidated (Testable
// Property 6) regardless of which branch is taken.
func (c *Client) rejectEarlyData() {
	c.invalidateEarlyPSK()
	wroteAny := len(c.sentEarlyWrites) > 0
	compatible := c.state.earlyDataCompatible()
	if c.earlyDataPolicy == AutomaticResend && (!wroteAny || compatible) {
		c.resendEarlyDataAsAppData()
		return
	}
	c.teardownAfterEarlyRejection(ErrEarlyDataRejected)
}

// resendEarlyDataAsAppData concatenates every write already sent as
// 0-RTT data into a single AppWrite, then flushes whatever was held
// behind it (spec.md §8 S4). The connection becomes replay-safe as soon
// as this reconciliation completes without a fatal teardown (spec.md
// §4.4's second bullet), whether or not there was anything to resend.
func (c *Client) resendEarlyDataAsAppData() {
	sent := c.sentEarlyWrites
	c.sentEarlyWrites = nil
	if len(sent) == 0 {
		c.flushHeldWrites()
		c.signalReplaySafe()
		return
	}
	var combined []byte
	for _, w := range sent {
		combined = append(combined, w.Bytes...)
	}
	oc := c.machine.AppWrite(&c.state, AppWrite{
		Bytes: combined,
		Callback: func(err error) {
			for _, w := range sent {
				if w.Callback != nil {
					w.Callback(err)
				}
			}
		},
	})
	c.runOutcome(oc, c, func() {
		c.flushHeldWrites()
		c.signalReplaySafe()
	})
}

// teardownAfterEarlyRejection is the shared failure path for an
// incompatible or policy-fatal early-data rejection (spec.md §8 S5/S6):
// every write the driver is holding on the application's behalf fails,
// the read callback sees the rejection, and the transport is forced
// down without ever becoming replay-safe.
func (c *Client) teardownAfterEarlyRejection(reason error) {
	c.state.Phase = PhaseError
	sent := c.sentEarlyWrites
	c.sentEarlyWrites = nil
	for _, w := range sent {
		if w.Callback != nil {
			w.Callback(newWriteErr(0, reason))
		}
	}
	c.rejectHeldWrites(newWriteErr(0, reason))
	if c.appReadCB != nil && c.appReadCB.OnError != nil {
		c.appReadCB.OnError(reason)
	}
	c.closeImmediate(false, c)
}

func (c *Client) onError(e error) {
	c.lastErr = e
	if c.handshakeCB != nil {
		cb := c.handshakeCB
		c.handshakeCB = nil
		cb.HandshakeError(c, e)
	}
	c.rejectHeldWrites(newWriteErr(0, e))
	if c.appReadCB != nil && c.appReadCB.OnError != nil {
		c.appReadCB.OnError(e)
	}
}

func (c *Client) failPendingOnClose() {
	c.rejectHeldWrites(newWriteErr(0, ErrClosed))
	if c.handshakeCB != nil {
		cb := c.handshakeCB
		c.handshakeCB = nil
		cb.HandshakeError(c, ErrClosed)
	}
}

func (c *Client) flushHeldWrites() {
	writes := c.heldWrites
	c.heldWrites = nil
	c.holdWrites = false
	c.flushNext(writes)
}

// flushNext replays held writes one at a time, waiting for each to
// finish (which may itself be asynchronous) before issuing the next, so
// they still go through the state machine as a strictly ordered
// sequence.
func (c *Client) flushNext(writes []PendingEarlyWrite) {
	if len(writes) == 0 {
		return
	}
	w := writes[0]
	rest := writes[1:]
	oc := c.machine.AppWrite(&c.state, AppWrite{Bytes: w.Bytes, Callback: w.Callback, Flags: w.Flags})
	c.runOutcome(oc, c, func() { c.flushNext(rest) })
}

func (c *Client) rejectHeldWrites(err error) {
	writes := c.heldWrites
	c.heldWrites = nil
	c.holdWrites = false
	for _, w := range writes {
		if w.Callback != nil {
			w.Callback(err)
		}
	}
}

// normalizeServerName converts serverName to its A-label (punycode) form
// per the IDNA lookup profile, so the state machine receives the same
// ConnectOptions.ServerName whether the caller passed a Unicode hostname
// or its ASCII equivalent. The PSK identity passed to Connect is not
// normalized. Falls back to the input unchanged if it isn't valid IDNA.
func normalizeServerName(name string) string {
	if name == "" {
		return name
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return name
	}
	return ascii
}

func (c *Client) invalidateEarlyPSK() {
	if c.config.PSKs == nil || c.pskIdentityUsed == "" {
		return
	}
	c.config.PSKs.Remove(c.pskIdentityUsed)
}
