package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrVerificationFailed = errors.New("webhook signature verification failed")

// Verifier authenticates provider webhook deliveries. Verification must run
// over the literal bytes received on the wire; re-serializing the payload
// first invalidates the signature.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(payload []byte, signatureHeader string) error {
	if len(v.secret) == 0 {
		return ErrVerificationFailed
	}

	incoming := strings.ToLower(strings.TrimSpace(signatureHeader))
	incoming = strings.TrimPrefix(incoming, "sha256=")
	if incoming == "" {
		return ErrVerificationFailed
	}

	incomingRaw, err := hex.DecodeString(incoming)
	if err != nil {
		return ErrVerificationFailed
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), incomingRaw) {
		return ErrVerificationFailed
	}

	return nil
}

// Sign computes the hex signature for a payload. Used by tests and local
// provider simulators.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
