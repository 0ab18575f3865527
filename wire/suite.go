package wire

import "fmt"

// CipherSuite identifies a TLS 1.3 AEAD cipher suite.
type CipherSuite uint16

const (
	TLS_AES_128_GCM_SHA256       CipherSuite = 0x1301
	TLS_AES_256_GCM_SHA384       CipherSuite = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 CipherSuite = 0x1303
)

var suiteNames = map[CipherSuite]string{
	TLS_AES_128_GCM_SHA256:       "TLS_AES_128_GCM_SHA256",
	TLS_AES_256_GCM_SHA384:       "TLS_AES_256_GCM_SHA384",
	TLS_CHACHA20_POLY1305_SHA256: "TLS_CHACHA20_POLY1305_SHA256",
}

func (c CipherSuite) String() string {
	if name, ok := suiteNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}

// NamedGroup identifies a key-exchange group.
type NamedGroup uint16

const (
	Secp256r1 NamedGroup = 0x0017
	X25519    NamedGroup = 0x001d
)

var groupNames = map[NamedGroup]string{
	Secp256r1: "secp256r1",
	X25519:    "x25519",
}

func (g NamedGroup) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(g))
}

// SignatureScheme identifies a signature algorithm/hash pair.
type SignatureScheme uint16

const (
	EcdsaSecp256r1Sha256 SignatureScheme = 0x0403
	EcdsaSecp384r1Sha384 SignatureScheme = 0x0503
	EcdsaSecp521r1Sha512 SignatureScheme = 0x0603
	RsaPssSha256         SignatureScheme = 0x0804
	RsaPssSha384         SignatureScheme = 0x0805
	RsaPssSha512         SignatureScheme = 0x0806
	Ed25519              SignatureScheme = 0x0807
	Ed448                SignatureScheme = 0x0808
)

var sigSchemeNames = map[SignatureScheme]string{
	EcdsaSecp256r1Sha256: "ecdsa_secp256r1_sha256",
	EcdsaSecp384r1Sha384: "ecdsa_secp384r1_sha384",
	EcdsaSecp521r1Sha512: "ecdsa_secp521r1_sha512",
	RsaPssSha256:         "rsa_pss_sha256",
	RsaPssSha384:         "rsa_pss_sha384",
	RsaPssSha512:         "rsa_pss_sha512",
	Ed25519:              "ed25519",
	Ed448:                "ed448",
}

func (s SignatureScheme) String() string {
	if name, ok := sigSchemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(s))
}

// PSKKeyExchangeMode identifies whether a PSK is used alone or combined
// with a fresh (EC)DHE exchange.
type PSKKeyExchangeMode uint8

const (
	PskKE    PSKKeyExchangeMode = 0
	PskDHEKE PSKKeyExchangeMode = 1
)

var pskModeNames = map[PSKKeyExchangeMode]string{
	PskKE:    "psk_ke",
	PskDHEKE: "psk_dhe_ke",
}

func (m PSKKeyExchangeMode) String() string {
	if name, ok := pskModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(m))
}
