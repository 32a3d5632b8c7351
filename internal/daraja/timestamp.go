package daraja

import (
	"encoding/base64"
	"time"
)

// The gateway validates the request password against its own clock in
// Kenyan time. A timestamp rendered in any other zone produces a
// signature mismatch that Daraja reports as a generic auth failure, so
// every timestamp must come from this one function.
var nairobi = loadNairobi()

func loadNairobi() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// Timestamp renders t in the gateway's required YYYYMMDDHHMMSS format,
// Nairobi time.
func Timestamp(t time.Time) string {
	return t.In(nairobi).Format("20060102150405")
}

// Password derives the request signature from the merchant shortcode,
// passkey and timestamp per the Daraja documentation.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
