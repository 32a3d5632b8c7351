package referral

import (
	"math/rand/v2"
)

const tokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const tokenLength = 6

// GenerateToken produces a human-shareable referral code. Tokens are not
// security material, only a lookup handle the patient can read out over
// the phone.
func GenerateToken() string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenChars[rand.IntN(len(tokenChars))]
	}
	return string(b)
}
