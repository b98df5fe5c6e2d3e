package auth

import (
	"crypto/rand"
	"math/big"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
	"github.com/samber/lo"
)

const (
	totpIssuer         = "Spark"
	recoveryCodeCount  = 8
	recoveryCodeLength = 10
	emailCodeLength    = 6
)

// GenerateTOTPSecret creates a new TOTP secret for the account and returns
// the base32 secret together with the otpauth:// provisioning URL the client
// renders as a QR code.
func GenerateTOTPSecret(accountName string) (secret, provisioningURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "generate totp secret")
	}
	return key.Secret(), key.URL(), nil
}

// TOTPProvisioningURL rebuilds the otpauth:// URL for an already stored
// secret, so the QR code can be served again without rotating the secret.
func TOTPProvisioningURL(secret, accountName string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", totpIssuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + totpIssuer + ":" + accountName,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// ValidateTOTP checks a 6-digit authenticator code against the secret.
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(strings.TrimSpace(code), secret)
}

const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRecoveryCodes returns a fresh batch of one-time recovery codes.
// The alphabet skips the ambiguous characters 0/O and 1/I.
func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := randomString(recoveryAlphabet, recoveryCodeLength)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code[:5]+"-"+code[5:])
	}
	return codes, nil
}

// ConsumeRecoveryCode checks the code against the stored comma separated
// batch. On a match it returns the batch with that code removed and true;
// each code is usable exactly once.
func ConsumeRecoveryCode(stored, code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if stored == "" || code == "" {
		return stored, false
	}
	codes := strings.Split(stored, ",")
	if !lo.Contains(codes, code) {
		return stored, false
	}
	remaining := lo.Without(codes, code)
	return strings.Join(remaining, ","), true
}

// GenerateEmailCode returns a random 6-digit code for email based 2FA and
// registration verification.
func GenerateEmailCode() (string, error) {
	return randomString("0123456789", emailCodeLength)
}

func randomString(alphabet string, length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
