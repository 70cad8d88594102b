package barcode

import (
	"strings"
)

const (
	ChecksumCodeLength   = 13
	checksumBodyLength   = 12
	checksumPayloadWidth = 6
	manufacturerWidth    = 3
	DefaultNamespaceCode = "200"
)

// ChecksumDigit computes the mod-10 check digit over body.
// Digits at even 0-based positions weigh 1 and odd positions weigh 3.
func ChecksumDigit(body string) (byte, error) {
	if body == "" || !allDigits(body) {
		return 0, ErrInvalidChecksumBody
	}
	sum := 0
	for i := 0; i < len(body); i++ {
		d := int(body[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10), nil
}

// mapSerial turns a raw serial into digits: digits pass through, letters become
// their two-digit alphabet ordinal (A=01 .. Z=26), everything else is dropped.
func mapSerial(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) * 2)
	for _, r := range strings.ToUpper(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			ord := int(r-'A') + 1
			b.WriteByte(byte('0' + ord/10))
			b.WriteByte(byte('0' + ord%10))
		}
	}
	return b.String()
}

// leftPad keeps the rightmost width characters of s, padding with '0' when shorter
func leftPad(s string, width int) string {
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}
