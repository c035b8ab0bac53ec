package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC of payload in constant time.
// An optional "sha256=" prefix is accepted.
func VerifySignature(secret string, payload []byte, header string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	provided := strings.TrimSpace(header)
	provided = strings.TrimPrefix(provided, "sha256=")
	if provided == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature missing")
	}

	got, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature malformed")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch")
	}
	return nil
}
