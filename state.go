package tls13d

import "github.com/NulledExceptions/tls13d/wire"

// Phase is the coarse handshake lifecycle phase (spec.md §3).
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseClientHandshake
	PhaseServerHandshake
	PhaseEarlyData
	PhaseEstablished
	PhaseClosed
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseClientHandshake:
		return "client_handshake"
	case PhaseServerHandshake:
		return "server_handshake"
	case PhaseEarlyData:
		return "early_data"
	case PhaseEstablished:
		return "established"
	case PhaseClosed:
		return "closed"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether p is a phase from which no further
// transitions may occur (spec.md §3 invariant).
func (p Phase) terminal() bool {
	return p == PhaseClosed || p == PhaseError
}

// PskType distinguishes an out-of-band ("external") PSK from one derived
// from a prior session's resumption ticket.
type PskType int

const (
	PskTypeNone PskType = iota
	PskTypeExternal
	PskTypeResumption
)

// EarlyDataParams is the snapshot of negotiation parameters the client
// promised to the server as part of a 0-RTT flight (spec.md §3).
type EarlyDataParams struct {
	Version    wire.ProtocolVersion
	Cipher     wire.CipherSuite
	ALPN       string
	HasALPN    bool
	ClientCert Cert
	ServerCert Cert
}

// State is the mutable handshake record the driver owns exclusively;
// only the driver's action interpreter mutates it, always via a
// MutateState closure returned by the state machine (spec.md §3).
type State struct {
	Phase Phase

	Version wire.ProtocolVersion
	Cipher  wire.CipherSuite

	HasALPN bool
	ALPN    string

	PskMode PskType
	PskType PskType

	ExporterMasterSecret      []byte
	EarlyExporterMasterSecret []byte

	ClientCert Cert
	ServerCert Cert

	HasEarlyDataParams bool
	EarlyDataParams    EarlyDataParams
}

// established reports whether the phase is PhaseEstablished and the
// exporter master secret is set; Version and Cipher are not checked.
func (s *State) established() bool {
	return s.Phase == PhaseEstablished && s.ExporterMasterSecret != nil
}

// earlyDataCompatible reports whether the parameters the handshake
// actually achieved match what was promised when 0-RTT was offered
// (spec.md §4.3): version and cipher equal; ALPN equal, treating
// absent-both as equal; client_cert absent in promised, or promised and
// achieved both present with equal identity (a cert appearing where none
// was promised is not an incompatibility, per spec.md §9); server_cert
// present on both sides with equal identity (absent in promised should
// never happen, and is treated as incompatible rather than trusted
// blindly). If no early data was ever promised, there is nothing to
// reconcile.
func (s *State) earlyDataCompatible() bool {
	if !s.HasEarlyDataParams {
		return true
	}
	p := &s.EarlyDataParams
	if p.Version != s.Version || p.Cipher != s.Cipher {
		return false
	}
	if p.HasALPN != s.HasALPN || (p.HasALPN && p.ALPN != s.ALPN) {
		return false
	}
	if p.ClientCert != nil {
		if s.ClientCert == nil || p.ClientCert.Identity() != s.ClientCert.Identity() {
			return false
		}
	}
	if p.ServerCert == nil || s.ServerCert == nil || p.ServerCert.Identity() != s.ServerCert.Identity() {
		return false
	}
	return true
}

// Mutator is the first-class value a state machine invocation returns
// instead of mutating State directly, keeping the state machine free of
// any notion of "who applies this and when" (spec.md §3, §9).
type Mutator func(*State)
