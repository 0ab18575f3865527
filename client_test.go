package tls13d

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/NulledExceptions/tls13d/psk"
	"github.com/NulledExceptions/tls13d/wire"
	"github.com/stretchr/testify/require"
)

var errUnitTest = errors.New("driver_test: injected state machine error")

func newTestClient(m *scriptedMachine) (*Client, *fakeTransport) {
	tr := newFakeTransport()
	cfg := &Config{}
	c := NewClient(tr, cfg, m, NewEventLoop())
	return c, tr
}

// S1 — Plain handshake.
func TestClientPlainHandshake(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{WaitForData{}})},
		socketData: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) { s.HasALPN = true; s.ALPN = "h2" }},
			ReportHandshakeSuccess{EarlyDataAccepted: false},
		})},
	}
	c, tr := newTestClient(m)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "", "example.com", "")
	tr.feed([]byte("ServerData"))

	require.Equal(t, 1, cb.successCount)
	require.Equal(t, 0, cb.errorCount)
	require.True(t, c.IsReplaySafe())
	require.Equal(t, "h2", c.ApplicationProtocol())
}

// S2 — Handshake error.
func TestClientHandshakeError(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			ReportError{Err: errUnitTest},
			WaitForData{},
		})},
	}
	c, _ := newTestClient(m)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "", "example.com", "")

	require.Equal(t, 0, cb.successCount)
	require.Equal(t, 1, cb.errorCount)
	require.True(t, c.Error())

	var writeErrGot error
	c.Write([]byte("test"), func(err error) { writeErrGot = err }, WriteFlags{})
	require.Error(t, writeErrGot)
	we, ok := writeErrGot.(*writeErr)
	require.True(t, ok)
	require.Equal(t, 0, we.bytesWritten)
}

// S3 — Early accept path.
func TestClientEarlyAcceptPath(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ServerCert: NewIdentityCert("srv"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
		appWrite:      []Outcome{Now(Actions{WaitForData{}}), Now(Actions{WaitForData{}}), Now(Actions{WaitForData{}})},
	}
	c, _ := newTestClient(m)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "", "example.com", "psk-id")
	require.Equal(t, 1, cb.successCount)
	require.False(t, c.IsReplaySafe())

	c.Write([]byte("earlywrite"), nil, WriteFlags{})
	require.Len(t, m.appWriteCalls, 0, "early write should not go through AppWrite")

	big := make([]byte, 2000)
	c.Write(big, nil, WriteFlags{})
	c.Write([]byte("shortwrite"), nil, WriteFlags{})

	replaySafeWriteIssued := false
	c.SetReplaySafetyCallback(func() {
		c.Write([]byte("replaysafe"), nil, WriteFlags{})
		replaySafeWriteIssued = true
	})

	c.applyActions(Actions{ReportHandshakeSuccess{EarlyDataAccepted: true}}, c)

	require.True(t, replaySafeWriteIssued)
	require.True(t, c.IsReplaySafe())
	require.Len(t, m.appWriteCalls, 3)
	require.Equal(t, big, m.appWriteCalls[0].Bytes)
	require.Equal(t, []byte("shortwrite"), m.appWriteCalls[1].Bytes)
	require.Equal(t, []byte("replaysafe"), m.appWriteCalls[2].Bytes)
}

// S4 — Early reject, AutomaticResend, compatible.
func TestClientEarlyRejectAutomaticResendCompatible(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					HasALPN:    true,
					ALPN:       "h2",
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}}), Now(Actions{WaitForData{}})},
		appWrite:      []Outcome{Now(Actions{WaitForData{}})},
	}
	c, _ := newTestClient(m)
	pskCache := psk.MapCache{"psk-id": psk.Key{CipherSuite: wire.TLS_AES_128_GCM_SHA256, NextProto: "h2"}}
	c.config.PSKs = pskCache
	cb := &fakeClientHandshakeCB{}
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(cb, "", "example.com", "psk-id")

	replaySafeFired := false
	c.SetReplaySafetyCallback(func() { replaySafeFired = true })

	c.Write([]byte("aaaa"), nil, WriteFlags{})
	c.Write([]byte("bbbb"), nil, WriteFlags{})

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.HasALPN = true
			s.ALPN = "h2"
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.Len(t, m.appWriteCalls, 1)
	require.Equal(t, []byte("aaaabbbb"), m.appWriteCalls[0].Bytes)
	require.True(t, c.IsReplaySafe(), "a compatible resend must still become replay-safe")
	require.True(t, replaySafeFired)
	_, ok := pskCache.Get("psk-id")
	require.False(t, ok, "PSK must be invalidated on any early-data rejection")
}

// S5 — Early reject, ALPN changed: even under AutomaticResend, an
// incompatible achieved parameter set must fail the read callback and
// force the transport closed.
func TestClientEarlyRejectIncompatibleALPN(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					HasALPN:    true,
					ALPN:       "h2",
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
	}
	c, tr := newTestClient(m)
	pskCache := psk.MapCache{"psk-id": psk.Key{CipherSuite: wire.TLS_AES_128_GCM_SHA256, NextProto: "h2"}}
	c.config.PSKs = pskCache
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	var readErr error
	c.SetReadCallback(&ReadCallback{OnError: func(e error) { readErr = e }})

	replaySafeFired := false
	c.SetReplaySafetyCallback(func() { replaySafeFired = true })

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.HasALPN = true
			s.ALPN = "h3"
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.ErrorIs(t, readErr, ErrEarlyDataRejected)
	require.True(t, tr.closed)
	require.False(t, replaySafeFired)
}

// A server certificate that changed between the promise and the achieved
// handshake is incompatible even though every other parameter matches.
func TestClientEarlyRejectDifferentServerIdentity(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
	}
	c, tr := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	var readErr error
	c.SetReadCallback(&ReadCallback{OnError: func(e error) { readErr = e }})

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ServerCert = NewIdentityCert("srv-2")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.ErrorIs(t, readErr, ErrEarlyDataRejected)
	require.True(t, tr.closed)
}

// A client certificate presented in the achieved handshake whose identity
// doesn't match the promised one is incompatible.
func TestClientEarlyRejectDifferentClientIdentity(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ClientCert: NewIdentityCert("client-a"),
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
	}
	c, tr := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	var readErr error
	c.SetReadCallback(&ReadCallback{OnError: func(e error) { readErr = e }})

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ClientCert = NewIdentityCert("client-b")
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.ErrorIs(t, readErr, ErrEarlyDataRejected)
	require.True(t, tr.closed)
}

// Matching client and server identities keep an AutomaticResend
// reconciliation on the resend path, not the teardown path.
func TestClientEarlyRejectSameClientIdentity(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ClientCert: NewIdentityCert("client-a"),
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
		appWrite:      []Outcome{Now(Actions{WaitForData{}})},
	}
	c, _ := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ClientCert = NewIdentityCert("client-a")
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.Len(t, m.appWriteCalls, 1)
	require.True(t, c.IsReplaySafe())
}

// A client cert promised but absent from the achieved handshake is an
// incompatibility (fizz's TestEarlyRejectNoClientCert): the reconciliation
// must fail closed even though every other promised parameter matches.
func TestClientEarlyRejectNoClientCert(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ClientCert: NewIdentityCert("client-a"),
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
	}
	c, tr := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	var readErr error
	c.SetReadCallback(&ReadCallback{OnError: func(e error) { readErr = e }})

	replaySafeFired := false
	c.SetReplaySafetyCallback(func() { replaySafeFired = true })

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ClientCert = nil
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.ErrorIs(t, readErr, ErrEarlyDataRejected)
	require.True(t, tr.closed)
	require.False(t, replaySafeFired)
}

// A client cert the achieved handshake presents where none was promised
// is not an incompatibility (spec.md §9's "a cert appearing where none was
// promised is not [an incompatibility]"), so the reconciliation still
// resends and becomes replay-safe.
func TestClientEarlyRejectClientCertNotPromised(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			MutateState{Fn: func(s *State) {
				s.HasEarlyDataParams = true
				s.EarlyDataParams = EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     wire.TLS_AES_128_GCM_SHA256,
					ServerCert: NewIdentityCert("srv-1"),
				}
			}},
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
		appWrite:      []Outcome{Now(Actions{WaitForData{}})},
	}
	c, _ := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "psk-id")
	c.Write([]byte("aaaa"), nil, WriteFlags{})

	c.applyActions(Actions{
		MutateState{Fn: func(s *State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			s.ClientCert = NewIdentityCert("client-a")
			s.ServerCert = NewIdentityCert("srv-1")
		}},
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.Len(t, m.appWriteCalls, 1)
	require.True(t, c.IsReplaySafe())
}

// ReportEarlyWriteFailed reports the write as successfully issued, not as
// an error, and removes it from the issued-early set so a later rejection
// doesn't resend it a second time (spec.md §4.2/§4.3).
func TestClientEarlyWriteFailedSignalsSuccessAndPopsQueue(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}}), Now(Actions{WaitForData{}})},
		appWrite:      []Outcome{Now(Actions{WaitForData{}})},
	}
	c, _ := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(AutomaticResend)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "")

	firstCalled := false
	var firstErr, secondErr error
	c.Write([]byte("first"), func(err error) { firstCalled = true; firstErr = err }, WriteFlags{})
	c.Write([]byte("second"), func(err error) { secondErr = err }, WriteFlags{})
	require.Len(t, c.sentEarlyWrites, 2)

	stop := c.onSpecial(ReportEarlyWriteFailed{Write: c.sentEarlyWrites[0]})

	require.False(t, stop)
	require.True(t, firstCalled)
	require.NoError(t, firstErr)
	require.Nil(t, secondErr)
	require.Len(t, c.sentEarlyWrites, 1)
	require.Equal(t, []byte("second"), c.sentEarlyWrites[0].Bytes)

	c.applyActions(Actions{ReportHandshakeSuccess{EarlyDataAccepted: false}}, c)
	require.Len(t, m.appWriteCalls, 1)
	require.Equal(t, []byte("second"), m.appWriteCalls[0].Bytes)
}

// S6 — Early reject, FatalConnectionError.
func TestClientEarlyRejectFatalConnectionError(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{
			ReportEarlyHandshakeSuccess{MaxEarlyDataSize: 1000},
		})},
		earlyAppWrite: []Outcome{Now(Actions{WaitForData{}})},
	}
	c, tr := newTestClient(m)
	c.SetEarlyDataRejectionPolicy(FatalConnectionError)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "")

	var pendingErr error
	c.Write([]byte("aaaa"), func(err error) { pendingErr = err }, WriteFlags{})

	replaySafeFired := false
	c.SetReplaySafetyCallback(func() { replaySafeFired = true })

	c.applyActions(Actions{
		ReportHandshakeSuccess{EarlyDataAccepted: false},
	}, c)

	require.Error(t, pendingErr)
	we, ok := pendingErr.(*writeErr)
	require.True(t, ok)
	require.Equal(t, 0, we.bytesWritten)
	require.True(t, tr.closed)
	require.False(t, replaySafeFired)
}

func TestClientReplaySafetyCallbackFiresOnce(t *testing.T) {
	m := &scriptedMachine{connect: []Outcome{Now(Actions{})}}
	c, _ := newTestClient(m)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "")

	fired := 0
	c.SetReplaySafetyCallback(func() { fired++ })
	c.signalReplaySafe()
	c.signalReplaySafe()
	require.Equal(t, 1, fired)
}

// Write submitted after the driver has already gone terminal fails
// immediately, without another round trip through the state machine
// (spec.md §8 S2).
func TestClientWriteAfterErrorFailsImmediately(t *testing.T) {
	m := &scriptedMachine{
		connect: []Outcome{Now(Actions{ReportError{Err: errUnitTest}})},
	}
	c, _ := newTestClient(m)
	c.Connect(&fakeClientHandshakeCB{}, "", "example.com", "")

	before := len(m.appWriteCalls)
	var got error
	c.Write([]byte("late"), func(err error) { got = err }, WriteFlags{})
	require.Equal(t, before, len(m.appWriteCalls))
	require.Error(t, got)
	we, ok := got.(*writeErr)
	require.True(t, ok)
	require.ErrorIs(t, we.Unwrap(), errUnitTest)
}

// A Client constructed without a live transport and given no address to
// dial reports the misuse error through the handshake callback and never
// enters the state machine (spec.md §4.1).
func TestClientConnectWithoutTransportRequiresAddress(t *testing.T) {
	m := &scriptedMachine{connect: []Outcome{Now(Actions{WaitForData{}})}}
	c := NewClient(nil, &Config{}, m, NewEventLoop())
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "", "example.com", "")

	require.Equal(t, 1, cb.errorCount)
	require.ErrorIs(t, cb.lastErr, ErrNoUnderlyingSocket)
	require.Equal(t, 0, m.connectCalls)
	require.False(t, c.Good())
}

// Passing an address to Connect on a Client that already has a live
// transport is a misuse error, not a request to dial a second one.
func TestClientConnectAlreadyOpenWithLiveTransport(t *testing.T) {
	m := &scriptedMachine{connect: []Outcome{Now(Actions{WaitForData{}})}}
	c, _ := newTestClient(m)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "203.0.113.1:443", "example.com", "")

	require.Equal(t, 1, cb.errorCount)
	require.ErrorIs(t, cb.lastErr, ErrAlreadyOpen)
	require.Equal(t, 0, m.connectCalls)
}

// A second Connect call on an already-open driver reports ErrAlreadyOpen
// and doesn't re-enter the state machine.
func TestClientConnectTwiceReportsAlreadyOpen(t *testing.T) {
	m := &scriptedMachine{connect: []Outcome{Now(Actions{WaitForData{}})}}
	c, _ := newTestClient(m)
	first := &fakeClientHandshakeCB{}
	c.Connect(first, "", "example.com", "")
	require.Equal(t, 1, m.connectCalls)

	second := &fakeClientHandshakeCB{}
	c.Connect(second, "", "example.com", "")
	require.Equal(t, 1, second.errorCount)
	require.ErrorIs(t, second.lastErr, ErrAlreadyOpen)
	require.Equal(t, 1, m.connectCalls, "a repeat Connect must not re-enter the state machine")
}

// A Client constructed without a live transport dials Config.Dial's
// result and only then enters the state machine (spec.md §4.1).
func TestClientConnectDialsAddressOnConnect(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()

	m := &scriptedMachine{connect: []Outcome{Now(Actions{WaitForData{}})}}
	loop := NewEventLoop()
	cfg := &Config{Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		return clientEnd, nil
	}}
	c := NewClient(nil, cfg, m, loop)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "example.com:443", "example.com", "")

	require.Eventually(t, func() bool { return loop.RunOne() }, time.Second, time.Millisecond)

	require.Equal(t, 1, m.connectCalls)
	require.True(t, c.Good())
	c.CloseNow()
}

// A dial failure reports through the handshake callback and never enters
// the state machine (spec.md §4.1).
func TestClientConnectDialFailureReportsHandshakeError(t *testing.T) {
	dialErr := errors.New("driver_test: dial refused")
	m := &scriptedMachine{connect: []Outcome{Now(Actions{WaitForData{}})}}
	loop := NewEventLoop()
	cfg := &Config{Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, dialErr
	}}
	c := NewClient(nil, cfg, m, loop)
	cb := &fakeClientHandshakeCB{}
	c.Connect(cb, "example.com:443", "example.com", "")

	require.Eventually(t, func() bool { return loop.RunOne() }, time.Second, time.Millisecond)

	require.Equal(t, 1, cb.errorCount)
	require.ErrorIs(t, cb.lastErr, dialErr)
	require.Equal(t, 0, m.connectCalls)
}
