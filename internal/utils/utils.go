package utils

import (
	"math/rand"
	"strconv"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateID returns a random lowercase alphanumeric id of the given length.
func GenerateID(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = idCharset[rand.Intn(len(idCharset))]
	}
	return string(b)
}

// OrdinalNumber renders 1 -> "1st", 2 -> "2nd", 11 -> "11th" and so on.
func OrdinalNumber(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
