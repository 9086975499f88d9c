package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
)

// DealReferencePrefix starts every human-facing deal reference.
const DealReferencePrefix = "ESC"

// GenerateDealReference creates a deal reference in the format "ESCXXXXXX"
// where XXXXXX is a random 6-digit number
func GenerateDealReference() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate deal reference: %w", err)
	}
	return fmt.Sprintf("%s%06d", DealReferencePrefix, n.Int64()), nil
}

// GenerateInviteCode returns a base58 token of 16 random bytes, safe to embed
// in a share link.
func GenerateInviteCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return base58.Encode(buf), nil
}

// GenerateTransactionReference creates a ledger reference such as
// "MPESA-3XkU9f2aQp". The prefix names the rail or purpose.
func GenerateTransactionReference(prefix string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate transaction reference: %w", err)
	}
	return strings.ToUpper(prefix) + "-" + base58.Encode(buf), nil
}
