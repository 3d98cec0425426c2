package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const hashFieldSeparator = "\x1f"

func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ContentHash identifies a review by what it says, not where it came from.
// Identical text, rating and author always hash to the same key.
func ContentHash(reviewText string, rating int, authorName string) string {
	return HashString(strings.Join([]string{
		reviewText,
		strconv.Itoa(rating),
		authorName,
	}, hashFieldSeparator))
}
