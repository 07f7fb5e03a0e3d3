package auth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpOpts pins the validation window: 30-second steps, six digits, and a
// skew of one step so codes from the adjacent windows are accepted while
// anything two or more steps away is rejected.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type TOTPService struct {
	Issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{Issuer: issuer}
}

// Generate provisions a new 160-bit secret for the account and returns it
// with the otpauth:// URL clients render as an enrollment QR code.
func (t *TOTPService) Generate(email string) (secret, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: email,
		SecretSize:  20,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (t *TOTPService) Verify(secret, code string) bool {
	return t.VerifyAt(secret, code, time.Now())
}

func (t *TOTPService) VerifyAt(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totpOpts)
	return err == nil && ok
}
