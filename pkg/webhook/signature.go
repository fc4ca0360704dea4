package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature headers on outbound deliveries.
const (
	HeaderEventID          = "X-Mock-Event-Id"
	HeaderSignature        = "X-Mock-Signature"
	HeaderSignatureVersion = "X-Mock-Signature-Version"
	HeaderSignatureLegacy  = "X-Mock-Signature-Legacy"

	// SignatureVersion is the current signing scheme identifier.
	SignatureVersion = "v2"
)

// Sign computes the v2 signature: sha256=<hex HMAC-SHA256(secret, body)>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// SignLegacy computes the backward-compatible v1 digest: hex
// SHA-256(secret + body). Kept for consumers that predate the HMAC scheme.
func SignLegacy(secret string, body []byte) string {
	sum := sha256.Sum256(append([]byte(secret), body...))
	return hex.EncodeToString(sum[:])
}
