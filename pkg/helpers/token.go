package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// GenToken returns n random bytes as an URL-safe opaque token. Used for
// checkout tokens, reset tokens, 2FA challenge handles and CSRF tokens.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
