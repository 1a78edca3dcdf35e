package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// ComputeSignature returns base64(HMAC-SHA256(key, notificationURL + body)).
func ComputeSignature(key, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	_, _ = mac.Write([]byte(notificationURL))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func verifyHMACSignature(key, notificationURL string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}

	candidate, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key))
	_, _ = mac.Write([]byte(notificationURL))
	_, _ = mac.Write(body)
	return hmac.Equal(candidate, mac.Sum(nil))
}
