package obs

import "testing"

func TestMaskValue(t *testing.T) {
	if got := MaskValue("short"); got != "***" {
		t.Fatalf("短值掩码 %q", got)
	}
	if got := MaskValue("abcdefghijklmn"); got != "abcd***klmn" {
		t.Fatalf("长值掩码 %q", got)
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/secret/path?q=1", "https://example.com/***"},
		{"https://example.com", "https://example.com"},
		{"::::", "***"},
	}
	for _, tt := range tests {
		if got := MaskURL(tt.in); got != tt.want {
			t.Fatalf("MaskURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
