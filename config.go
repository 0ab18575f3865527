package tls13d

import (
	"net"
	"sync"

	"github.com/NulledExceptions/tls13d/psk"
	"github.com/NulledExceptions/tls13d/wire"
)

// Certificate wraps a single certificate handle, mirroring the teacher's
// Config.Certificates entries.
type Certificate struct {
	Cert Cert
}

// Config carries the negotiation parameters shared by a Client and a
// Server driver. It is the core's own configuration surface (cipher
// suites, groups, PSK cache, ...), distinct from the "CLI/configuration"
// external application surface spec.md places out of scope.
type Config struct {
	ServerName string

	Certificates []*Certificate

	CipherSuites     []wire.CipherSuite
	Groups           []wire.NamedGroup
	SignatureSchemes []wire.SignatureScheme
	NextProtos       []string
	PSKModes         []wire.PSKKeyExchangeMode

	PSKs psk.Cache

	// AllowEarlyData is carried along by Clone but is not read by the
	// drivers or by the example state machine; it does not by itself turn
	// 0-RTT on or off.
	AllowEarlyData bool

	// Dial opens the network connection a Client constructed without a
	// live transport dials on Connect (spec.md §4.1). Defaults to
	// (&net.Dialer{}).DialContext.
	Dial Dialer

	mutex sync.RWMutex
}

// Clone returns a shallow copy of c, safe to hand to a new driver while
// the original is still in use elsewhere, mirroring the teacher's own
// Config.Clone contract.
func (c *Config) Clone() *Config {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return &Config{
		ServerName:       c.ServerName,
		Certificates:     c.Certificates,
		CipherSuites:     c.CipherSuites,
		Groups:           c.Groups,
		SignatureSchemes: c.SignatureSchemes,
		NextProtos:       c.NextProtos,
		PSKModes:         c.PSKModes,
		PSKs:             c.PSKs,
		AllowEarlyData:   c.AllowEarlyData,
		Dial:             c.Dial,
	}
}

var (
	defaultCipherSuites = []wire.CipherSuite{
		wire.TLS_AES_128_GCM_SHA256,
		wire.TLS_AES_256_GCM_SHA384,
		wire.TLS_CHACHA20_POLY1305_SHA256,
	}
	defaultGroups = []wire.NamedGroup{wire.X25519, wire.Secp256r1}
	defaultSigSchemes = []wire.SignatureScheme{
		wire.RsaPssSha256, wire.EcdsaSecp256r1Sha256, wire.Ed25519,
	}
	defaultPSKModes = []wire.PSKKeyExchangeMode{wire.PskDHEKE, wire.PskKE}
)

// init fills in the negotiation defaults the teacher's Config.Init also
// applies, so a zero-value Config is usable.
func (c *Config) init() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.CipherSuites) == 0 {
		c.CipherSuites = defaultCipherSuites
	}
	if len(c.Groups) == 0 {
		c.Groups = defaultGroups
	}
	if len(c.SignatureSchemes) == 0 {
		c.SignatureSchemes = defaultSigSchemes
	}
	if len(c.PSKModes) == 0 {
		c.PSKModes = defaultPSKModes
	}
	if c.PSKs == nil {
		c.PSKs = psk.MapCache{}
	}
	if c.Dial == nil {
		c.Dial = (&net.Dialer{}).DialContext
	}
}

// EarlyDataRejectionPolicy governs how the client recovers when the
// server rejects a proposed 0-RTT flight (spec.md §4.3).
type EarlyDataRejectionPolicy int

const (
	// FatalConnectionError fails every pending write, delivers
	// EarlyDataRejected to the read callback, and tears the connection
	// down.
	FatalConnectionError EarlyDataRejectionPolicy = iota
	// AutomaticResend replays the already-issued early writes as a
	// single post-handshake write when the achieved parameters remain
	// compatible with what was promised; otherwise it falls back to
	// FatalConnectionError.
	AutomaticResend
)
