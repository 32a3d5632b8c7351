package daraja

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestTimestampFormatsNairobiTime(t *testing.T) {
	// 2024-03-15 09:30:45 UTC is 12:30:45 in Nairobi (UTC+3, no DST).
	utc := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	if got := Timestamp(utc); got != "20240315123045" {
		t.Errorf("Timestamp(%s) = %q, want 20240315123045", utc, got)
	}
}

func TestTimestampAlreadyNairobi(t *testing.T) {
	local := time.Date(2024, 12, 31, 23, 59, 59, 0, nairobi)
	if got := Timestamp(local); got != "20241231235959" {
		t.Errorf("Timestamp = %q, want 20241231235959", got)
	}
}

func TestTimestampZeroPadding(t *testing.T) {
	utc := time.Date(2024, 1, 2, 0, 4, 5, 0, nairobi)
	if got := Timestamp(utc); got != "20240102000405" {
		t.Errorf("Timestamp = %q, want 20240102000405", got)
	}
}

func TestPassword(t *testing.T) {
	got := Password("174379", "passkey", "20240315123045")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20240315123045"))
	if got != want {
		t.Errorf("Password = %q, want %q", got, want)
	}
}
