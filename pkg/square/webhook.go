package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader is the request header Square signs webhook deliveries with.
const SignatureHeader = "x-square-hmacsha256-signature"

// VerifyWebhookSignature checks the HMAC-SHA256 signature Square
// computes over the notification URL concatenated with the raw body.
func (c *Client) VerifyWebhookSignature(signature, notificationURL string, body []byte) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.webhookSecret, signature, notificationURL, body)
}

// VerifySignature validates a Square webhook signature against the
// given signing secret. Comparison is constant time.
func VerifySignature(secret, signature, notificationURL string, body []byte) bool {
	secret = strings.TrimSpace(secret)
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
