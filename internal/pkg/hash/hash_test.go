package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256String(t *testing.T) {
	got := SHA256String("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if got != want {
		t.Errorf("SHA256String(hello) = %s, want %s", got, want)
	}
}

func TestSHA256Short(t *testing.T) {
	hash := SHA256([]byte("hello"))

	tests := []struct {
		n    int
		want string
	}{
		{8, hash[:8]},
		{16, hash[:16]},
		{32, hash[:32]},
		{64, hash},  // full hash
		{100, hash}, // exceeds length, returns full
	}

	for _, tt := range tests {
		got := SHA256Short([]byte("hello"), tt.n)
		if got != tt.want {
			t.Errorf("SHA256Short(hello, %d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	fp, err := Fingerprint(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	want := "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if fp != want {
		t.Errorf("Fingerprint(hello) = %s, want %s", fp, want)
	}

	if !IsSHA256Fingerprint(fp) {
		t.Error("IsSHA256Fingerprint() = false for a sha256: fingerprint")
	}
}

func TestIsSHA256Fingerprint(t *testing.T) {
	if IsSHA256Fingerprint("md5:deadbeef") {
		t.Error("IsSHA256Fingerprint(md5:...) = true, want false")
	}
	if !IsSHA256Fingerprint("sha256:abc") {
		t.Error("IsSHA256Fingerprint(sha256:...) = false, want true")
	}
}

func TestSafeStorageKey(t *testing.T) {
	got := SafeStorageKey("sha256:abc123")
	want := "sha256_abc123"
	if got != want {
		t.Errorf("SafeStorageKey() = %s, want %s", got, want)
	}
}

func BenchmarkSHA256(b *testing.B) {
	data := []byte("benchmark test data for hashing performance measurement")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SHA256(data)
	}
}
