// Package webhook provides the inbound delivery primitives of the settlement
// engine: HMAC signature verification over raw payloads and retry backoff
// strategies for transient commit failures.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeaders carries the signature material delivered alongside a
// webhook payload. The scheme matches what major providers use: an
// HMAC-SHA256 over "timestamp.payload" with a shared secret.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
}

// Headers returns the signature headers as a map for HTTP transport.
func (s SignatureHeaders) Headers() map[string]string {
	return map[string]string{
		"X-Webhook-Signature": s.Signature,
		"X-Webhook-Timestamp": strconv.FormatInt(s.Timestamp, 10),
	}
}

// SignPayload creates signature headers for a payload. Binding the timestamp
// into the signed material prevents replay of captured deliveries.
func SignPayload(secret string, payload []byte) (SignatureHeaders, error) {
	return signPayloadAt(secret, payload, time.Now().Unix())
}

func signPayloadAt(secret string, payload []byte, timestamp int64) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return SignatureHeaders{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	return SignatureHeaders{
		Signature: computeSignature(secret, payload, timestamp),
		Timestamp: timestamp,
	}, nil
}

// VerifySignature validates webhook authenticity over the raw, unparsed
// payload. maxAge > 0 additionally enforces a freshness window.
func VerifySignature(secret string, payload []byte, headers SignatureHeaders, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if headers.Signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(headers.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signature timestamp too old: %v", ErrInvalidSignature, age)
		}
		// Tolerate modest clock skew but reject far-future timestamps.
		if age < -1*time.Minute {
			return fmt.Errorf("%w: signature timestamp is in the future", ErrInvalidSignature)
		}
	}

	expected := computeSignature(secret, payload, headers.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(headers.Signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// ParseSignatureHeader splits the compact "t=<unix>,v1=<hex>" header form
// used on the wire into SignatureHeaders.
func ParseSignatureHeader(header string) (SignatureHeaders, error) {
	var sig SignatureHeaders
	var rawTS, rawSig string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			rawTS = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			rawSig = strings.TrimPrefix(part, "v1=")
		}
	}
	if rawTS == "" || rawSig == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return SignatureHeaders{}, fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}
	sig.Timestamp = ts
	sig.Signature = rawSig
	return sig, nil
}

func computeSignature(secret string, payload []byte, timestamp int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", timestamp, payload)
	return hex.EncodeToString(h.Sum(nil))
}
