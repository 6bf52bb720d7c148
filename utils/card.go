package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Internal-use EAN prefix for loyalty cards.
const barcodePrefix = "200"

// GenerateMemberNumber returns a candidate member number in the format
// VCS<yy><6 digits>. Uniqueness is enforced by the caller against the
// members table.
func GenerateMemberNumber() string {
	year := time.Now().Format("06")
	return fmt.Sprintf("VCS%s%06d", year, randomBelow(1000000))
}

// GenerateCardBarcode returns a candidate 13-digit EAN-13 barcode with
// a valid check digit.
func GenerateCardBarcode() string {
	code := barcodePrefix
	for i := 0; i < 9; i++ {
		code += fmt.Sprintf("%d", randomBelow(10))
	}
	return code + fmt.Sprintf("%d", EAN13CheckDigit(code))
}

// EAN13CheckDigit computes the check digit for a 12-digit EAN-13 body.
func EAN13CheckDigit(code string) int {
	total := 0
	for i, ch := range code {
		digit := int(ch - '0')
		if i%2 == 0 {
			total += digit
		} else {
			total += digit * 3
		}
	}
	return (10 - (total % 10)) % 10
}

// ValidEAN13 reports whether a 13-digit string carries a correct
// EAN-13 check digit.
func ValidEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return EAN13CheckDigit(code[:12]) == int(code[12]-'0')
}

func randomBelow(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a time-derived value rather than panicking.
		return time.Now().UnixNano() % n
	}
	return v.Int64()
}
