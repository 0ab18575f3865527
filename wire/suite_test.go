package wire

import "testing"

func TestCipherSuiteStringRoundTrip(t *testing.T) {
	for suite, name := range suiteNames {
		if got := suite.String(); got != name {
			t.Errorf("CipherSuite(%d).String() = %q, want %q", suite, got, name)
		}
	}
}

func TestUnknownCipherSuiteRendersHex(t *testing.T) {
	got := CipherSuite(0x9999).String()
	if got != "0x9999" {
		t.Errorf("String() = %q, want %q", got, "0x9999")
	}
}

func TestAlertDescriptionIsError(t *testing.T) {
	var err error = AlertCloseNotify
	if err.Error() == "" {
		t.Fatalf("expected non-empty error string")
	}
}
