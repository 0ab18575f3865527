// Package example provides a runnable, non-production StateMachine that
// exercises the tls13d driver end to end: a single-round-trip
// Diffie-Hellman handshake over Curve25519, HKDF-derived traffic and
// exporter secrets, and ChaCha20-Poly1305 record encryption. It exists so
// tls13d can be driven without a second party supplying a real TLS 1.3
// implementation; it is not a wire-compatible TLS 1.3 stack (spec.md
// §5.2, "reference collaborator").
package example

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/NulledExceptions/tls13d"
	"github.com/NulledExceptions/tls13d/psk"
	"github.com/NulledExceptions/tls13d/wire"
)

const (
	recClientHello byte = iota
	recServerHello
	recAppData
	recEarlyData
	recCloseNotify
)

const maxEarlyDataSize = 16384

// Machine is a tls13d.StateMachine. A single Machine can drive many
// connections concurrently; per-connection key material lives in a
// scratch record keyed by the connection's *tls13d.State pointer, since
// the StateMachine interface itself is stateless (spec.md §2).
type Machine struct {
	PSKs         psk.Cache
	Certificates map[string]tls13d.Cert

	mu      sync.Mutex
	scratch map[*tls13d.State]*connScratch
}

type connScratch struct {
	priv, pub [32]byte
	peerPub   [32]byte
	shared    []byte

	writeKey, readKey     []byte
	writeSeq, readSeq     uint64
	earlyKey              []byte
	earlySeq              uint64
	pskIdentity           string
	sentEarlyDataRequest  bool
	handshakeSecretExtant bool
}

func (m *Machine) scratchFor(state *tls13d.State) *connScratch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scratch == nil {
		m.scratch = make(map[*tls13d.State]*connScratch)
	}
	if s, ok := m.scratch[state]; ok {
		return s
	}
	s := &connScratch{}
	m.scratch[state] = s
	return s
}

func (m *Machine) forget(state *tls13d.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scratch, state)
}

func genKeypair() (priv, pub [32]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	curve25519.ScalarBaseMult(&pub, &priv)
	return
}

func deriveSecret(secret []byte, label string, length int) []byte {
	out := make([]byte, length)
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	if _, err := io.ReadFull(r, out); err != nil {
		panic(err) // hkdf.Read only fails if length exceeds its output limit
	}
	return out
}

// Connect implements tls13d.StateMachine.
func (m *Machine) Connect(state *tls13d.State, opts tls13d.ConnectOptions) tls13d.Outcome {
	sc := m.scratchFor(state)
	priv, pub, err := genKeypair()
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.priv, sc.pub = priv, pub

	var pk *psk.Key
	if opts.PSKIdentity != "" && m.PSKs != nil {
		if k, ok := m.PSKs.Get(opts.PSKIdentity); ok {
			pk = &k
			sc.pskIdentity = opts.PSKIdentity
		}
	}

	actions := tls13d.Actions{
		tls13d.MutateState{Fn: func(s *tls13d.State) { s.Phase = tls13d.PhaseClientHandshake }},
		tls13d.WriteToSocket{Bytes: encodeClientHello(pub, opts.ServerName, opts.NextProtos, opts.PSKIdentity, pk != nil)},
	}

	if pk != nil {
		sc.earlyKey = deriveSecret(pk.Secret, "early data key", chacha20poly1305.KeySize)
		earlyExporter := deriveSecret(pk.Secret, "early exporter", 32)
		sc.sentEarlyDataRequest = true

		var promisedServerCert tls13d.Cert
		if pk.ServerCertIdentity != "" {
			promisedServerCert = tls13d.NewIdentityCert(pk.ServerCertIdentity)
		}

		actions = append(actions,
			tls13d.MutateState{Fn: func(s *tls13d.State) {
				s.PskMode = tls13d.PskTypeResumption
				if !pk.IsResumption {
					s.PskMode = tls13d.PskTypeExternal
				}
				s.EarlyExporterMasterSecret = earlyExporter
				// The promised parameters come from the state machine, not
				// the driver: the driver never sees the PSK cache entry
				// itself, only what it's told here (spec.md §3, §4.3).
				s.HasEarlyDataParams = true
				s.EarlyDataParams = tls13d.EarlyDataParams{
					Version:    wire.VersionTLS13,
					Cipher:     pk.CipherSuite,
					ALPN:       pk.NextProto,
					HasALPN:    pk.NextProto != "",
					ServerCert: promisedServerCert,
				}
			}},
			tls13d.ReportEarlyHandshakeSuccess{MaxEarlyDataSize: maxEarlyDataSize},
		)
	}
	return tls13d.Now(actions)
}

// Accept implements tls13d.StateMachine.
func (m *Machine) Accept(state *tls13d.State) tls13d.Outcome {
	m.scratchFor(state)
	return tls13d.Now(tls13d.Actions{
		tls13d.MutateState{Fn: func(s *tls13d.State) { s.Phase = tls13d.PhaseServerHandshake }},
		tls13d.WaitForData{},
	})
}

// SocketData implements tls13d.StateMachine. Each call is expected to
// carry exactly one complete record; reassembling records split across
// transport reads is out of scope for this reference machine.
func (m *Machine) SocketData(state *tls13d.State, buf []byte) tls13d.Outcome {
	sc := m.scratchFor(state)
	if len(buf) < 5 {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: errors.New("example: short record")}})
	}
	typ := buf[0]
	length := binary.BigEndian.Uint32(buf[1:5])
	payload := buf[5:]
	if uint32(len(payload)) != length {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: errors.New("example: truncated record")}})
	}

	switch {
	case typ == recClientHello && state.Phase == tls13d.PhaseServerHandshake:
		return m.handleClientHello(state, sc, payload)
	case typ == recServerHello && state.Phase == tls13d.PhaseClientHandshake:
		return m.handleServerHello(state, sc, payload)
	case typ == recServerHello && state.Phase == tls13d.PhaseEarlyData:
		return m.handleServerHello(state, sc, payload)
	case typ == recEarlyData:
		return m.handleEarlyData(sc, payload)
	case typ == recAppData:
		return m.handleAppData(sc, payload)
	case typ == recCloseNotify:
		return tls13d.Now(tls13d.Actions{
			tls13d.MutateState{Fn: func(s *tls13d.State) { s.Phase = tls13d.PhaseClosed }},
			tls13d.WaitForData{},
		})
	default:
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: fmt.Errorf("example: unexpected record %d in phase %s", typ, state.Phase)}})
	}
}

func (m *Machine) handleClientHello(state *tls13d.State, sc *connScratch, payload []byte) tls13d.Outcome {
	peerPub, sni, alpns, pskIdentity, earlyRequested, err := decodeClientHello(payload)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.peerPub = peerPub

	priv, pub, err := genKeypair()
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.priv, sc.pub = priv, pub

	shared, err := curve25519.X25519(sc.priv[:], sc.peerPub[:])
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.shared = shared

	var chosenALPN string
	if len(alpns) > 0 {
		chosenALPN = alpns[0]
	}

	var pk *psk.Key
	if pskIdentity != "" && m.PSKs != nil {
		if k, ok := m.PSKs.Get(pskIdentity); ok {
			pk = &k
		}
	}
	earlyAccepted := earlyRequested && pk != nil

	exporter := deriveSecret(shared, "exporter master secret", 32)
	sc.writeKey = deriveSecret(shared, "server write key", chacha20poly1305.KeySize)
	sc.readKey = deriveSecret(shared, "client write key", chacha20poly1305.KeySize)
	if earlyAccepted {
		sc.earlyKey = deriveSecret(pk.Secret, "early data key", chacha20poly1305.KeySize)
	}

	serverCert := m.Certificates[""]

	actions := tls13d.Actions{
		tls13d.WriteToSocket{Bytes: encodeServerHello(pub, wire.TLS_AES_128_GCM_SHA256, chosenALPN, earlyAccepted)},
		tls13d.MutateState{Fn: func(s *tls13d.State) {
			s.Version = wire.VersionTLS13
			s.Cipher = wire.TLS_AES_128_GCM_SHA256
			if chosenALPN != "" {
				s.HasALPN = true
				s.ALPN = chosenALPN
			}
			s.ServerCert = serverCert
			s.ExporterMasterSecret = exporter
			if pk != nil {
				if pk.IsResumption {
					s.PskType = tls13d.PskTypeResumption
				} else {
					s.PskType = tls13d.PskTypeExternal
				}
			}
		}},
	}
	if earlyRequested {
		actions = append(actions, tls13d.ReportEarlyHandshakeSuccess{MaxEarlyDataSize: maxEarlyDataSize})
	}
	actions = append(actions, tls13d.ReportHandshakeSuccess{EarlyDataAccepted: earlyAccepted})

	if m.PSKs != nil {
		var serverCertIdentity string
		if serverCert != nil {
			serverCertIdentity = serverCert.Identity()
		}
		now := time.Now()
		ticket := psk.Key{
			CipherSuite:        wire.TLS_AES_128_GCM_SHA256,
			IsResumption:       true,
			Identity:           []byte(sni),
			Secret:             deriveSecret(shared, "resumption secret", 32),
			NextProto:          chosenALPN,
			ReceivedAt:         now,
			ExpiresAt:          now.Add(time.Hour),
			ServerCertIdentity: serverCertIdentity,
		}
		m.PSKs.Put(sni, ticket)
	}

	return tls13d.Now(actions)
}

func (m *Machine) handleServerHello(state *tls13d.State, sc *connScratch, payload []byte) tls13d.Outcome {
	peerPub, cipher, alpn, earlyAccepted, err := decodeServerHello(payload)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.peerPub = peerPub

	shared, err := curve25519.X25519(sc.priv[:], sc.peerPub[:])
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.shared = shared
	sc.writeKey = deriveSecret(shared, "client write key", chacha20poly1305.KeySize)
	sc.readKey = deriveSecret(shared, "server write key", chacha20poly1305.KeySize)
	exporter := deriveSecret(shared, "exporter master secret", 32)

	// This reference machine never sends a real Certificate message, so
	// the client's own view of the server's identity comes from whatever
	// PSK entry it resumed under: a PSK-less first handshake sees no
	// server cert at all, matching the toy protocol's scope.
	var achievedServerCert tls13d.Cert
	if sc.pskIdentity != "" && m.PSKs != nil {
		if k, ok := m.PSKs.Get(sc.pskIdentity); ok && k.ServerCertIdentity != "" {
			achievedServerCert = tls13d.NewIdentityCert(k.ServerCertIdentity)
		}
	}

	return tls13d.Now(tls13d.Actions{
		tls13d.MutateState{Fn: func(s *tls13d.State) {
			s.Version = wire.VersionTLS13
			s.Cipher = cipher
			if alpn != "" {
				s.HasALPN = true
				s.ALPN = alpn
			}
			s.ExporterMasterSecret = exporter
			if achievedServerCert != nil {
				s.ServerCert = achievedServerCert
			}
		}},
		tls13d.ReportHandshakeSuccess{EarlyDataAccepted: earlyAccepted},
	})
}

func (m *Machine) handleEarlyData(sc *connScratch, payload []byte) tls13d.Outcome {
	pt, err := open(sc.earlyKey, sc.earlySeq, payload)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.earlySeq++
	return tls13d.Now(tls13d.Actions{tls13d.DeliverAppData{Data: pt}})
}

func (m *Machine) handleAppData(sc *connScratch, payload []byte) tls13d.Outcome {
	pt, err := open(sc.readKey, sc.readSeq, payload)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.readSeq++
	return tls13d.Now(tls13d.Actions{tls13d.DeliverAppData{Data: pt}})
}

// AppWrite implements tls13d.StateMachine.
func (m *Machine) AppWrite(state *tls13d.State, write tls13d.AppWrite) tls13d.Outcome {
	sc := m.scratchFor(state)
	ct, err := seal(sc.writeKey, sc.writeSeq, write.Bytes)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.writeSeq++
	return tls13d.Now(tls13d.Actions{
		tls13d.WriteToSocket{Bytes: encodeRecord(recAppData, ct), Flags: write.Flags, Callback: write.Callback},
	})
}

// EarlyAppWrite implements tls13d.StateMachine.
func (m *Machine) EarlyAppWrite(state *tls13d.State, write tls13d.EarlyAppWrite) tls13d.Outcome {
	sc := m.scratchFor(state)
	ct, err := seal(sc.earlyKey, sc.earlySeq, write.Bytes)
	if err != nil {
		return tls13d.Now(tls13d.Actions{tls13d.ReportError{Err: err}})
	}
	sc.earlySeq++
	return tls13d.Now(tls13d.Actions{
		tls13d.WriteToSocket{Bytes: encodeRecord(recEarlyData, ct), Flags: write.Flags, Callback: write.Callback},
	})
}

// AppClose implements tls13d.StateMachine.
func (m *Machine) AppClose(state *tls13d.State) tls13d.Outcome {
	m.forget(state)
	return tls13d.Now(tls13d.Actions{
		tls13d.MutateState{Fn: func(s *tls13d.State) { s.Phase = tls13d.PhaseError }},
		tls13d.WriteToSocket{Bytes: encodeRecord(recCloseNotify, nil)},
	})
}

var _ tls13d.StateMachine = (*Machine)(nil)

func seal(key []byte, seq uint64, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	binary.BigEndian.PutUint64(nonce[aead.NonceSize()-8:], seq)
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func open(key []byte, seq uint64, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	binary.BigEndian.PutUint64(nonce[aead.NonceSize()-8:], seq)
	return aead.Open(nil, nonce, ciphertext, nil)
}
