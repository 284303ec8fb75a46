package provider

import (
	"errors"
	"testing"
)

func TestVerifierAcceptsValidSignature(t *testing.T) {
	v := NewVerifier("whsec_test")
	payload := []byte(`{"id":"evt_1","type":"checkout.completed"}`)

	if err := v.Verify(payload, v.Sign(payload)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := v.Verify(payload, "sha256="+v.Sign(payload)); err != nil {
		t.Fatalf("prefixed signature rejected: %v", err)
	}
}

func TestVerifierRejectsBadSignature(t *testing.T) {
	v := NewVerifier("whsec_test")
	payload := []byte(`{"id":"evt_1"}`)

	for _, sig := range []string{
		"",
		"deadbeef",
		"not-hex!",
		NewVerifier("other-secret").Sign(payload),
	} {
		if err := v.Verify(payload, sig); !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("signature %q: got %v, want ErrVerificationFailed", sig, err)
		}
	}
}

func TestVerifierUsesRawBytesNotReEncodedJSON(t *testing.T) {
	v := NewVerifier("whsec_test")

	// Same JSON document, different byte representation. Only the exact
	// wire bytes must verify.
	wire := []byte(`{"a": 1,  "b": 2}`)
	reEncoded := []byte(`{"a":1,"b":2}`)

	sig := v.Sign(wire)
	if err := v.Verify(wire, sig); err != nil {
		t.Fatalf("wire bytes rejected: %v", err)
	}
	if err := v.Verify(reEncoded, sig); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("re-encoded payload must not verify, got %v", err)
	}
}
