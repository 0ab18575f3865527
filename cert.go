package tls13d

import "crypto/x509"

// Cert is the opaque certificate handle threaded through State. Its own
// verification/parsing is an external collaborator (spec.md §1); the
// core only needs an identity for early-data compatibility comparisons
// (spec.md §4.3) and the raw x509 handle for accessors.
type Cert interface {
	// Identity is a stable string identifying the certificate's subject,
	// used for promised-vs-achieved comparison. Two certs with the same
	// Identity() are treated as interchangeable for 0-RTT compatibility
	// purposes, mirroring fizz's Cert::getIdentity().
	Identity() string
	X509() *x509.Certificate
}

// basicCert is the trivial Cert wrapping a parsed x509 certificate,
// identifying it by the string form of its subject.
type basicCert struct {
	cert *x509.Certificate
}

func NewCert(cert *x509.Certificate) Cert {
	return &basicCert{cert: cert}
}

func (c *basicCert) Identity() string        { return c.cert.Subject.String() }
func (c *basicCert) X509() *x509.Certificate { return c.cert }

// identityCert is a Cert carrying only a stable identity string, no
// parsed certificate. It exists for promised-parameter tracking: a PSK
// cache entry remembers the identity of the certificate a prior session
// authenticated, not the certificate itself, so a later 0-RTT attempt
// can compare identities without re-parsing anything (spec.md §4.3).
type identityCert struct {
	identity string
}

// NewIdentityCert wraps a bare identity string as a Cert, for callers
// that only have a remembered identity (e.g. a resumption ticket) and no
// parsed certificate to go with it. X509 always returns nil.
func NewIdentityCert(identity string) Cert {
	return &identityCert{identity: identity}
}

func (c *identityCert) Identity() string        { return c.identity }
func (c *identityCert) X509() *x509.Certificate { return nil }
