package auth

import (
	"strings"

	"github.com/google/uuid"
)

// TokenPrefix is the prefix clients expect on proxy tokens.
const TokenPrefix = "pro_"

// MinTokenLength is the shortest token the web client accepts.
const MinTokenLength = 10

// GenerateToken returns a new random token with the proxy prefix.
func GenerateToken() string {
	return TokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WellFormedToken reports whether a token follows the pro_ convention.
func WellFormedToken(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && len(token) >= MinTokenLength
}
