package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// Field names defined by the VNPay 2.1.0 protocol.
const (
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
)

var (
	ErrSignatureMismatch = errors.New("vnpay: secure hash mismatch")
	ErrMissingSignature  = errors.New("vnpay: secure hash missing")
)

// hashData canonicalizes the parameter map: keys sorted lexicographically,
// values percent-encoded with '+' for space, joined as key=value pairs with
// '&'. Signing and verification both go through here so the encoding is
// byte-identical in both directions.
func hashData(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "vnp_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Sign computes the hex HMAC-SHA512 digest over the canonicalized params.
// The params must not contain the hash fields themselves.
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(hashData(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the vnp_SecureHash carried in params against a digest
// recomputed from the remaining vnp_ fields. The input map is not modified.
func Verify(params map[string]string, secret string) error {
	provided, ok := params[FieldSecureHash]
	if !ok || provided == "" {
		return ErrMissingSignature
	}

	rest := make(map[string]string, len(params))
	for k, v := range params {
		if k == FieldSecureHash || k == FieldSecureHashType {
			continue
		}
		rest[k] = v
	}

	expected := Sign(rest, secret)
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}
