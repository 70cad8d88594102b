package barcode

import (
	"fmt"
)

// Encoder turns reserved counter values into code strings.
// It is a pure function of its inputs and the configured prefix and namespace.
type Encoder struct {
	prefix        string
	namespaceCode string
}

// NewEncoder creates an encoder for the given prefix and 3-digit namespace code.
// An empty namespace code selects DefaultNamespaceCode.
func NewEncoder(prefix, namespaceCode string) (*Encoder, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if namespaceCode == "" {
		namespaceCode = DefaultNamespaceCode
	}
	if len(namespaceCode) != 3 || !allDigits(namespaceCode) {
		return nil, ErrInvalidNamespace
	}
	return &Encoder{prefix: prefix, namespaceCode: namespaceCode}, nil
}

// Prefix returns the configured prefix
func (e *Encoder) Prefix() string {
	return e.prefix
}

// EncodeStructured builds prefix + type letter + zero-padded 6-digit counter
func (e *Encoder) EncodeStructured(counter int64, t BarcodeType) (string, error) {
	letter, ok := t.Letter()
	if !ok {
		return "", ErrInvalidBarcodeType
	}
	if counter < 0 {
		return "", ErrNegativeCounter
	}
	if counter > MaxCounter {
		return "", ErrCounterOverflow
	}
	return fmt.Sprintf("%s%c%0*d", e.prefix, letter, CounterWidth, counter), nil
}

// EncodeChecksumNumeric maps an arbitrary serial onto a 13-digit code:
// namespace (3) + manufacturer segment (3) + payload (6) + check digit.
// The mapping is lossy, so distinct serials may collide and only the
// registry can confirm uniqueness.
func (e *Encoder) EncodeChecksumNumeric(rawSerial string) string {
	mapped := mapSerial(rawSerial)

	payload := leftPad(mapped, checksumPayloadWidth)
	remainder := ""
	if len(mapped) > checksumPayloadWidth {
		remainder = mapped[:len(mapped)-checksumPayloadWidth]
	}
	manufacturer := leftPad(remainder, manufacturerWidth)

	body := e.namespaceCode + manufacturer + payload
	// body is all digits by construction
	check, _ := ChecksumDigit(body)
	return body + string(check)
}

// Encode produces a candidate in the requested format for a reserved counter
func (e *Encoder) Encode(counter int64, t BarcodeType, format Format) (string, error) {
	code, err := e.EncodeStructured(counter, t)
	if err != nil {
		return "", err
	}
	if format == FormatChecksumNumeric {
		return e.EncodeChecksumNumeric(code), nil
	}
	return code, nil
}
