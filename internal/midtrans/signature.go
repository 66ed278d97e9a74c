package midtrans

import (
	"crypto/sha512"
	"encoding/hex"
)

// VerifySignature reports whether signatureKey equals the hex-encoded
// SHA-512 of orderID + statusCode + grossAmount + serverKey. This is the
// sole authentication for inbound webhook notifications; callers must
// reject the request before touching any state when it returns false.
func VerifySignature(signatureKey, orderID, statusCode, grossAmount, serverKey string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:]) == signatureKey
}
