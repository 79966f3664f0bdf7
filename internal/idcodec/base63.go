// Package idcodec derives the stable document ids used to store files and
// their secondary search rows.
//
// Hashes are written in base 63 (A-Z, a-z, 0-9, _) so ids stay short and
// safe inside URLs and store keys.
package idcodec

import (
	"errors"
	"strings"
)

const (
	Base     = 63
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"
)

var (
	ErrEmptyString = errors.New("empty encoded string")
	ErrInvalidChar = errors.New("invalid character in encoded string")
	ErrOverflow    = errors.New("decoded value overflow")
)

// Encode writes value in base 63. Zero encodes as "A".
func Encode(value uint64) string {
	if value == 0 {
		return Alphabet[:1]
	}
	var buf [11]byte
	pos := len(buf)
	for value > 0 {
		pos--
		buf[pos] = Alphabet[value%Base]
		value /= Base
	}
	return string(buf[pos:])
}

// Decode reverses Encode.
func Decode(encoded string) (uint64, error) {
	if encoded == "" {
		return 0, ErrEmptyString
	}
	var value uint64
	for _, c := range encoded {
		digit := strings.IndexRune(Alphabet, c)
		if digit < 0 {
			return 0, ErrInvalidChar
		}
		if value > (^uint64(0)-uint64(digit))/Base {
			return 0, ErrOverflow
		}
		value = value*Base + uint64(digit)
	}
	return value, nil
}

// IsValid reports whether encoded decodes without error.
func IsValid(encoded string) bool {
	_, err := Decode(encoded)
	return err == nil
}
