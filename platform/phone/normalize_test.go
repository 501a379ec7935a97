package phone

import (
	"errors"
	"testing"
)

func TestE164(t *testing.T) {
	tests := []struct {
		region string
		in     string
		want   string
	}{
		{"", "(650) 253-0000", "+16502530000"},
		{"US", "+44 20 7031 3000", "+442070313000"},
		{"gb", "020 7031 3000", "+442070313000"},
	}
	for _, tt := range tests {
		got, err := NewNormalizer(tt.region).E164(tt.in)
		if err != nil {
			t.Fatalf("E164(%q) in %q: %v", tt.in, tt.region, err)
		}
		if got != tt.want {
			t.Fatalf("E164(%q) in %q = %q, want %q", tt.in, tt.region, got, tt.want)
		}
	}
}

func TestE164RejectsUnusableInput(t *testing.T) {
	for _, in := range []string{"", "   ", "not a number", "123", "+1 000 000 0000"} {
		if got, err := NewNormalizer("US").E164(in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("E164(%q) = %q, %v; want ErrInvalid", in, got, err)
		}
	}
}
