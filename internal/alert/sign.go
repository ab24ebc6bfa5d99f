package alert

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Headers carried on signed alert deliveries.
const (
	HeaderKeyID     = "X-Status-KeyID"
	HeaderTimestamp = "X-Status-Timestamp"
	HeaderNonce     = "X-Status-Nonce"
	HeaderSignature = "X-Status-Signature"
)

// SignPayload generates the HMAC headers for an outbound alert request.
func SignPayload(keyID, secret, method, path string, body []byte) map[string]string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.New().String()

	sig := computeHMAC(secret, buildSigningMessage(timestamp, nonce, method, path, body))
	return map[string]string{
		HeaderKeyID:     keyID,
		HeaderTimestamp: timestamp,
		HeaderNonce:     nonce,
		HeaderSignature: sig,
	}
}

// buildSigningMessage constructs the canonical message to be signed.
// Format: timestamp\nnonce\nMETHOD\npath\nhex(sha256(body))
func buildSigningMessage(timestamp, nonce, method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return strings.Join([]string{
		timestamp,
		nonce,
		strings.ToUpper(method),
		path,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
}

func computeHMAC(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
