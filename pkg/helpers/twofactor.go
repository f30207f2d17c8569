package helpers

import (
	"crypto/rand"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Two-factor helpers: TOTP provisioning/validation plus recovery codes.

// KeyTwoFactorChallenge is the Redis key holding a pending login challenge
// (the "temp username" state between password check and code verification).
func KeyTwoFactorChallenge(token string) string {
	return "login:2fa:" + token
}

// GenerateTOTPSecret provisions a new TOTP key for the account and returns
// the base32 secret plus the otpauth:// URL for QR enrollment.
func GenerateTOTPSecret(issuer, account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks a 6-digit code against the stored secret, allowing one
// period of clock skew.
func ValidateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// Recovery codes are 8 characters from an unambiguous alphabet (no 0/O, 1/I/L).
const recoveryAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	RecoveryCodeLen   = 8
	RecoveryCodeCount = 10
)

// GenRecoveryCode generates one single-use recovery code.
func GenRecoveryCode() (string, error) {
	b := make([]byte, RecoveryCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = recoveryAlphabet[int(b[i])%len(recoveryAlphabet)]
	}
	return string(b), nil
}

// GenRecoveryCodes generates a full replacement set.
func GenRecoveryCodes() ([]string, error) {
	out := make([]string, 0, RecoveryCodeCount)
	for i := 0; i < RecoveryCodeCount; i++ {
		code, err := GenRecoveryCode()
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, nil
}
