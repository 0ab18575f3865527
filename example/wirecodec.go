package example

import (
	"encoding/binary"
	"errors"

	"github.com/NulledExceptions/tls13d/wire"
)

// This file implements the tiny record and hello framing the reference
// Machine speaks. It is deliberately not TLS 1.3 wire format — the point
// of the reference machine is to exercise tls13d's driver contract, not
// to be interoperable.

func encodeRecord(typ byte, payload []byte) []byte {
	out := make([]byte, 5+len(payload))
	out[0] = typ
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	copy(out[5:], payload)
	return out
}

func putString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, errors.New("example: truncated string length")
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, errors.New("example: truncated string")
	}
	return string(buf[:n]), buf[n:], nil
}

func encodeClientHello(pub [32]byte, sni string, alpns []string, pskIdentity string, earlyDataRequested bool) []byte {
	var body []byte
	body = append(body, pub[:]...)
	body = putString(body, sni)
	body = append(body, byte(len(alpns)))
	for _, a := range alpns {
		body = putString(body, a)
	}
	body = putString(body, pskIdentity)
	if earlyDataRequested {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	return encodeRecord(recClientHello, body)
}

func decodeClientHello(payload []byte) (pub [32]byte, sni string, alpns []string, pskIdentity string, earlyDataRequested bool, err error) {
	if len(payload) < 32 {
		err = errors.New("example: short client hello")
		return
	}
	copy(pub[:], payload[:32])
	rest := payload[32:]
	sni, rest, err = getString(rest)
	if err != nil {
		return
	}
	if len(rest) < 1 {
		err = errors.New("example: truncated client hello alpn count")
		return
	}
	count := int(rest[0])
	rest = rest[1:]
	for i := 0; i < count; i++ {
		var a string
		a, rest, err = getString(rest)
		if err != nil {
			return
		}
		alpns = append(alpns, a)
	}
	pskIdentity, rest, err = getString(rest)
	if err != nil {
		return
	}
	if len(rest) < 1 {
		err = errors.New("example: truncated client hello early flag")
		return
	}
	earlyDataRequested = rest[0] == 1
	return
}

func encodeServerHello(pub [32]byte, cipher wire.CipherSuite, alpn string, earlyDataAccepted bool) []byte {
	var body []byte
	body = append(body, pub[:]...)
	var cipherBuf [2]byte
	binary.BigEndian.PutUint16(cipherBuf[:], uint16(cipher))
	body = append(body, cipherBuf[:]...)
	body = putString(body, alpn)
	if earlyDataAccepted {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	return encodeRecord(recServerHello, body)
}

func decodeServerHello(payload []byte) (pub [32]byte, cipher wire.CipherSuite, alpn string, earlyDataAccepted bool, err error) {
	if len(payload) < 34 {
		err = errors.New("example: short server hello")
		return
	}
	copy(pub[:], payload[:32])
	cipher = wire.CipherSuite(binary.BigEndian.Uint16(payload[32:34]))
	rest := payload[34:]
	alpn, rest, err = getString(rest)
	if err != nil {
		return
	}
	if len(rest) < 1 {
		err = errors.New("example: truncated server hello early flag")
		return
	}
	earlyDataAccepted = rest[0] == 1
	return
}
