package tls13d

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// EKM derives length bytes of keying material for label/context from the
// completed handshake's exporter master secret (spec.md §4.4). It fails
// with ErrHandshakeNotComplete before the handshake establishes.
func (c *Client) EKM(label string, context []byte, length int) ([]byte, error) {
	return exportKeyingMaterial(c.state.ExporterMasterSecret, c.state.established(), label, context, length)
}

// EarlyEKM is the 0-RTT counterpart of EKM, derived from the early
// exporter master secret. It is only available once the server has
// opened the early-data window.
func (c *Client) EarlyEKM(label string, context []byte, length int) ([]byte, error) {
	return exportKeyingMaterial(c.state.EarlyExporterMasterSecret, c.state.Phase == PhaseEarlyData || c.state.established(), label, context, length)
}

// EKM is the server-side counterpart of Client.EKM.
func (s *Server) EKM(label string, context []byte, length int) ([]byte, error) {
	return exportKeyingMaterial(s.state.ExporterMasterSecret, s.state.established(), label, context, length)
}

// EarlyEKM is the server-side counterpart of Client.EarlyEKM.
func (s *Server) EarlyEKM(label string, context []byte, length int) ([]byte, error) {
	return exportKeyingMaterial(s.state.EarlyExporterMasterSecret, s.state.Phase == PhaseEarlyData || s.state.established(), label, context, length)
}

func exportKeyingMaterial(secret []byte, available bool, label string, context []byte, length int) ([]byte, error) {
	if !available || len(secret) == 0 {
		return nil, ErrHandshakeNotComplete
	}
	out := make([]byte, length)
	r := hkdf.New(sha256.New, secret, []byte(label), context)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
