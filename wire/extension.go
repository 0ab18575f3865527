package wire

import "fmt"

// ExtensionType identifies a TLS extension.
type ExtensionType uint16

const (
	ExtensionServerName               ExtensionType = 0
	ExtensionSupportedGroups          ExtensionType = 10
	ExtensionSignatureAlgorithms      ExtensionType = 13
	ExtensionALPN                     ExtensionType = 16
	ExtensionKeyShareOld              ExtensionType = 40
	ExtensionPreSharedKey             ExtensionType = 41
	ExtensionEarlyData                ExtensionType = 42
	ExtensionSupportedVersions        ExtensionType = 43
	ExtensionCookie                   ExtensionType = 44
	ExtensionPSKKeyExchangeModes      ExtensionType = 45
	ExtensionCertificateAuthorities   ExtensionType = 47
	ExtensionPostHandshakeAuth        ExtensionType = 49
	ExtensionSignatureAlgorithmsCert  ExtensionType = 50
	ExtensionKeyShare                 ExtensionType = 51
	ExtensionAlternateServerName      ExtensionType = 0x3001
)

var extensionNames = map[ExtensionType]string{
	ExtensionServerName:              "server_name",
	ExtensionSupportedGroups:         "supported_groups",
	ExtensionSignatureAlgorithms:     "signature_algorithms",
	ExtensionALPN:                    "alpn",
	ExtensionKeyShareOld:             "key_share_old",
	ExtensionPreSharedKey:            "pre_shared_key",
	ExtensionEarlyData:               "early_data",
	ExtensionSupportedVersions:       "supported_versions",
	ExtensionCookie:                  "cookie",
	ExtensionPSKKeyExchangeModes:     "psk_key_exchange_modes",
	ExtensionCertificateAuthorities:  "certificate_authorities",
	ExtensionPostHandshakeAuth:       "post_handshake_auth",
	ExtensionSignatureAlgorithmsCert: "signature_algorithms_cert",
	ExtensionKeyShare:                "key_share",
	ExtensionAlternateServerName:     "alternate_server_name",
}

func (e ExtensionType) String() string {
	if name, ok := extensionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(e))
}

// AlertDescription is a TLS alert code.
type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMac           AlertDescription = 20
	AlertRecordOverflow         AlertDescription = 22
	AlertHandshakeFailure       AlertDescription = 40
	AlertBadCertificate         AlertDescription = 42
	AlertUnsupportedCertificate AlertDescription = 43
	AlertCertificateRevoked     AlertDescription = 44
	AlertCertificateExpired     AlertDescription = 45
	AlertCertificateUnknown     AlertDescription = 46
	AlertIllegalParameter       AlertDescription = 47
	AlertUnknownCA              AlertDescription = 48
	AlertAccessDenied           AlertDescription = 49
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertInappropriateFallback  AlertDescription = 86
	AlertUserCanceled           AlertDescription = 90
	AlertMissingExtension       AlertDescription = 109
	AlertUnsupportedExtension   AlertDescription = 110
	AlertUnrecognizedName       AlertDescription = 112
	AlertBadCertStatusResponse  AlertDescription = 113
	AlertUnknownPSKIdentity     AlertDescription = 115
	AlertCertificateRequired    AlertDescription = 116
	AlertNoApplicationProtocol  AlertDescription = 120
	AlertEndOfEarlyData         AlertDescription = 154
)

var alertNames = map[AlertDescription]string{
	AlertCloseNotify:            "close_notify",
	AlertUnexpectedMessage:      "unexpected_message",
	AlertBadRecordMac:           "bad_record_mac",
	AlertRecordOverflow:         "record_overflow",
	AlertHandshakeFailure:       "handshake_failure",
	AlertBadCertificate:         "bad_certificate",
	AlertUnsupportedCertificate: "unsupported_certificate",
	AlertCertificateRevoked:     "certificate_revoked",
	AlertCertificateExpired:     "certificate_expired",
	AlertCertificateUnknown:     "certificate_unknown",
	AlertIllegalParameter:       "illegal_parameter",
	AlertUnknownCA:              "unknown_ca",
	AlertAccessDenied:           "access_denied",
	AlertDecodeError:            "decode_error",
	AlertDecryptError:           "decrypt_error",
	AlertProtocolVersion:        "protocol_version",
	AlertInsufficientSecurity:   "insufficient_security",
	AlertInternalError:          "internal_error",
	AlertInappropriateFallback:  "inappropriate_fallback",
	AlertUserCanceled:           "user_canceled",
	AlertMissingExtension:       "missing_extension",
	AlertUnsupportedExtension:   "unsupported_extension",
	AlertUnrecognizedName:       "unrecognized_name",
	AlertBadCertStatusResponse:  "bad_certificate_status_response",
	AlertUnknownPSKIdentity:     "unknown_psk_identity",
	AlertCertificateRequired:    "certificate_required",
	AlertNoApplicationProtocol:  "no_application_protocol",
	AlertEndOfEarlyData:         "end_of_early_data",
}

func (a AlertDescription) String() string {
	if name, ok := alertNames[a]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(a))
}

// Error lets AlertDescription satisfy the error interface directly,
// mirroring the teacher's Alert type.
func (a AlertDescription) Error() string {
	return "tls alert: " + a.String()
}
