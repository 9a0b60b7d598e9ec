package pool

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"cvone/interview/internal/models"
)

// Normalize canonicalises a job description for keying: NFC composition,
// trimmed, lowercased, whitespace runs collapsed to one space.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(jobDescription string) string {
	s := strings.ToLower(norm.NFC.String(jobDescription))
	// lowercasing can leave combining sequences, compose again
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// PoolKey is the hex SHA-256 of the normalized description and difficulty
func PoolKey(normalized string, difficulty models.Difficulty) string {
	sum := sha256.Sum256([]byte(normalized + "\x00" + string(difficulty)))
	return hex.EncodeToString(sum[:])
}
