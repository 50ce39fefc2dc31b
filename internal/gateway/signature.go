package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ParseSignature splits an x-signature header of the form
// "ts=<unix>,v1=<hex>" into its fields. Unknown keys are ignored.
func ParseSignature(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(val)
		case "v1":
			v1 = strings.TrimSpace(val)
		}
	}
	return ts, v1
}

// VerifySignature checks the provider's HMAC over the canonical manifest
// "id:<dataId>;request-id:<requestId>;ts:<ts>;". The manifest layout is the
// provider's contract and must stay byte-exact. Fails closed on any missing
// or malformed input.
func VerifySignature(signatureHeader, requestID, dataID, secret string) bool {
	if secret == "" || signatureHeader == "" || requestID == "" || dataID == "" {
		return false
	}
	ts, v1 := ParseSignature(signatureHeader)
	if ts == "" || v1 == "" {
		return false
	}
	provided, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}

	manifest := "id:" + dataID + ";request-id:" + requestID + ";ts:" + ts + ";"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))

	// hmac.Equal is constant time; the length check happens inside.
	return hmac.Equal(mac.Sum(nil), provided)
}
