package midtrans

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func makeSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestVerifySignature(t *testing.T) {
	const (
		orderID     = "PLNT-X7K2M-9QF4A"
		statusCode  = "200"
		grossAmount = "150000.00"
		serverKey   = "SB-Mid-server-abc123"
	)
	valid := makeSignature(orderID, statusCode, grossAmount, serverKey)

	if !VerifySignature(valid, orderID, statusCode, grossAmount, serverKey) {
		t.Fatal("valid signature rejected")
	}

	// any single-field mutation must flip the result
	cases := []struct {
		name                           string
		sig, order, status, gross, key string
	}{
		{"tampered signature", valid[:len(valid)-1] + "0", orderID, statusCode, grossAmount, serverKey},
		{"different order", valid, "PLNT-AAAAA-BBBBB", statusCode, grossAmount, serverKey},
		{"different status code", valid, orderID, "201", grossAmount, serverKey},
		{"different amount", valid, orderID, statusCode, "150000.01", serverKey},
		{"different server key", valid, orderID, statusCode, grossAmount, "SB-Mid-server-other"},
		{"empty signature", "", orderID, statusCode, grossAmount, serverKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(tc.sig, tc.order, tc.status, tc.gross, tc.key) {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestVerifySignatureIsDeterministic(t *testing.T) {
	sig := makeSignature("o", "200", "100", "k")
	for i := 0; i < 3; i++ {
		if !VerifySignature(sig, "o", "200", "100", "k") {
			t.Fatal("verification is not deterministic")
		}
	}
}
