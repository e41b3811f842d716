package models

import (
	"errors"
	"fmt"
	"strings"
)

// ParcelIDLength is the number of digits in a normalized parcel identifier.
const ParcelIDLength = 14

// ErrInvalidParcelID is returned when a parcel identifier cannot be normalized.
var ErrInvalidParcelID = errors.New("invalid parcel id")

// ParcelID is a normalized 14-digit parcel identification number.
type ParcelID string

// NormalizeParcelID strips the usual separators from a raw parcel identifier
// (dashes, spaces, dots) and checks that exactly 14 digits remain.
func NormalizeParcelID(raw string) (ParcelID, error) {
	var b strings.Builder
	b.Grow(ParcelIDLength)

	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == '-' || r == ' ' || r == '.':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidParcelID, r, raw)
		}
	}

	if b.Len() != ParcelIDLength {
		return "", fmt.Errorf("%w: expected %d digits, got %d in %q",
			ErrInvalidParcelID, ParcelIDLength, b.Len(), raw)
	}

	return ParcelID(b.String()), nil
}

// Formatted renders the parcel id in the dashed county notation NN-NN-NNN-NNN-NNNN.
func (p ParcelID) Formatted() string {
	s := string(p)
	if len(s) != ParcelIDLength {
		return s
	}
	return s[0:2] + "-" + s[2:4] + "-" + s[4:7] + "-" + s[7:10] + "-" + s[10:14]
}

// String implements fmt.Stringer.
func (p ParcelID) String() string {
	return string(p)
}
