// Package wire holds the reference identifier tables that the TLS 1.3
// handshake state machine and the driver consume: protocol versions,
// cipher suites, alert descriptions, extension types, signature schemes,
// named groups and PSK key-exchange modes. The tables are a lookup
// surface, not a codec: encoding/decoding these values onto the wire is
// the handshake state machine's job, not this package's.
package wire

import "fmt"

// ProtocolVersion is a two-byte TLS version codepoint, including the
// historical TLS 1.3 draft codepoints and their "_fb" (Firefox/BoringSSL
// compatibility) variants.
type ProtocolVersion uint16

const (
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304

	VersionTLS13Draft20   ProtocolVersion = 0x7f14
	VersionTLS13Draft20FB ProtocolVersion = 0x7e14
	VersionTLS13Draft21   ProtocolVersion = 0x7f15
	VersionTLS13Draft21FB ProtocolVersion = 0x7e15
	VersionTLS13Draft22   ProtocolVersion = 0x7f16
	VersionTLS13Draft22FB ProtocolVersion = 0x7e16
	VersionTLS13Draft23   ProtocolVersion = 0x7f17
	VersionTLS13Draft23FB ProtocolVersion = 0x7e17
	VersionTLS13Draft26   ProtocolVersion = 0x7f1a
	VersionTLS13Draft26FB ProtocolVersion = 0x7e1a
	VersionTLS13Draft28   ProtocolVersion = 0x7f1c
)

var versionNames = map[ProtocolVersion]string{
	VersionTLS10:          "tls_1_0",
	VersionTLS11:          "tls_1_1",
	VersionTLS12:          "tls_1_2",
	VersionTLS13:          "tls_1_3",
	VersionTLS13Draft20:   "tls_1_3_draft20",
	VersionTLS13Draft20FB: "tls_1_3_draft20_fb",
	VersionTLS13Draft21:   "tls_1_3_draft21",
	VersionTLS13Draft21FB: "tls_1_3_draft21_fb",
	VersionTLS13Draft22:   "tls_1_3_draft22",
	VersionTLS13Draft22FB: "tls_1_3_draft22_fb",
	VersionTLS13Draft23:   "tls_1_3_draft23",
	VersionTLS13Draft23FB: "tls_1_3_draft23_fb",
	VersionTLS13Draft26:   "tls_1_3_draft26",
	VersionTLS13Draft26FB: "tls_1_3_draft26_fb",
	VersionTLS13Draft28:   "tls_1_3_draft28",
}

// String renders the human-readable name of v, falling back to a hex
// codepoint for anything not in the table.
func (v ProtocolVersion) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(v))
}

// draftBase maps each "_fb" variant to its non-fb base draft; every base
// draft (including tls_1_3 itself) maps to itself.
var draftBase = map[ProtocolVersion]ProtocolVersion{
	VersionTLS13:          VersionTLS13,
	VersionTLS13Draft20:   VersionTLS13Draft20,
	VersionTLS13Draft20FB: VersionTLS13Draft20,
	VersionTLS13Draft21:   VersionTLS13Draft21,
	VersionTLS13Draft21FB: VersionTLS13Draft21,
	VersionTLS13Draft22:   VersionTLS13Draft22,
	VersionTLS13Draft22FB: VersionTLS13Draft22,
	VersionTLS13Draft23:   VersionTLS13Draft23,
	VersionTLS13Draft23FB: VersionTLS13Draft23,
	VersionTLS13Draft26:   VersionTLS13Draft26,
	VersionTLS13Draft26FB: VersionTLS13Draft26,
	VersionTLS13Draft28:   VersionTLS13Draft28,
}

// RealDraft normalizes a TLS 1.3 draft codepoint (including its "_fb"
// variant, if any) to its base draft number. It is an error to call this
// on a codepoint that isn't one of the recognized TLS 1.3 codepoints
// (draft or final).
func RealDraft(v ProtocolVersion) (ProtocolVersion, error) {
	base, ok := draftBase[v]
	if !ok {
		return 0, fmt.Errorf("wire: %s is not a TLS 1.3 codepoint", v)
	}
	return base, nil
}
