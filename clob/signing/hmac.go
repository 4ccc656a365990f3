package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// BuildHmacSignature computes the L2 request signature:
// base64url(HMAC-SHA256(secret, timestamp+method+path+body)).
// The secret arrives base64url-encoded from the exchange.
func BuildHmacSignature(secret string, timestamp int64, method, requestPath string, body *string) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath
	if body != nil {
		message += *body
	}

	keyData, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	mac := hmac.New(sha256.New, keyData)
	mac.Write([]byte(message))

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// The exchange compares the URL-safe alphabet but keeps '='.
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig, nil
}

func decodeSecret(secret string) ([]byte, error) {
	// Secrets are issued base64url; normalize to the standard alphabet
	// and strip anything that is not base64.
	s := strings.ReplaceAll(secret, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+', r == '/', r == '=':
			return r
		}
		return -1
	}, s)
	return base64.StdEncoding.DecodeString(s)
}
