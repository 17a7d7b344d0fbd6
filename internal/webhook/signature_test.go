package webhook

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestComputeHMAC(t *testing.T) {
	a := ComputeHMAC([]byte(`{"etag":"x"}`), "secret", 1700000000)
	if len(a) != 64 {
		t.Fatalf("hex length = %d, want 64", len(a))
	}
	if b := ComputeHMAC([]byte(`{"etag":"x"}`), "secret", 1700000001); a == b {
		t.Error("timestamp must be part of the MAC")
	}
	if c := ComputeHMAC([]byte(`{"etag":"x"}`), "other", 1700000000); a == c {
		t.Error("secret must be part of the MAC")
	}
}

func TestSignAndVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"event":"snapshot.updated"}`)
	header := Sign(payload, "whsec_test", now)

	if !strings.HasPrefix(header, "t=1700000000,v1=") {
		t.Fatalf("unexpected header %q", header)
	}

	tests := []struct {
		name      string
		payload   []byte
		header    string
		secret    string
		tolerance time.Duration
		now       time.Time
		wantErr   error
	}{
		{"valid", payload, header, "whsec_test", 5 * time.Minute, now.Add(time.Minute), nil},
		{"no tolerance check", payload, header, "whsec_test", 0, now.Add(24 * time.Hour), nil},
		{"tampered payload", []byte(`{"event":"other"}`), header, "whsec_test", 0, now, ErrSignatureMismatch},
		{"wrong secret", payload, header, "nope", 0, now, ErrSignatureMismatch},
		{"expired", payload, header, "whsec_test", time.Minute, now.Add(10 * time.Minute), ErrSignatureExpired},
		{"from the future", payload, header, "whsec_test", time.Minute, now.Add(-10 * time.Minute), ErrSignatureExpired},
		{"missing timestamp", payload, "v1=abc", "whsec_test", 0, now, ErrMalformedSignature},
		{"missing mac", payload, "t=1700000000", "whsec_test", 0, now, ErrMalformedSignature},
		{"garbage", payload, "sha256=abc", "whsec_test", 0, now, ErrMalformedSignature},
		{"bad timestamp", payload, "t=soon,v1=abc", "whsec_test", 0, now, ErrMalformedSignature},
		{"no separator", payload, "t1700000000", "whsec_test", 0, now, ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, tt.secret, tt.tolerance, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifySignature() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSecret()
	if !strings.HasPrefix(a, "whsec_") || a == b {
		t.Errorf("unexpected secrets %q %q", a, b)
	}
}
