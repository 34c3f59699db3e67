package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"Bullish", "Bearish", "Lucky", "Bold", "Steady",
	"Silent", "Wild", "Golden", "Sharp", "Patient",
	"Contrarian", "Early", "Calm", "Daring", "Quiet",
}

var nouns = []string{
	"Oracle", "Punter", "Whale", "Prophet", "Hedger",
	"Caller", "Seer", "Backer", "Staker", "Pundit",
	"Shark", "Owl", "Fox", "Raven", "Lynx",
}

// GenerateNickname creates a display name "Adjective_Noun_XXXX" for a new
// wallet. The suffix is random so collisions are retried by the caller.
func GenerateNickname() (string, error) {
	adjIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(adjectives))))
	if err != nil {
		return "", fmt.Errorf("failed to pick adjective: %w", err)
	}

	nounIdx, err := rand.Int(rand.Reader, big.NewInt(int64(len(nouns))))
	if err != nil {
		return "", fmt.Errorf("failed to pick noun: %w", err)
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate suffix: %w", err)
	}

	return fmt.Sprintf("%s_%s_%04d", adjectives[adjIdx.Int64()], nouns[nounIdx.Int64()], suffix.Int64()), nil
}
