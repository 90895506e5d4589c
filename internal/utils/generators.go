package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateTransactionID builds an internal reference for gateway
// transactions that arrive without one.
func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("txn_%d_%09d", timestamp, randomNum.Int64())
}

// RandomDigits returns n cryptographically random decimal digits.
func RandomDigits(n int) string {
	digits := make([]byte, n)
	for i := range digits {
		v, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}
