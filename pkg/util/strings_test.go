package util

import "testing"

func TestParseIntDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"", 50, 50},
		{"20", 50, 20},
		{"abc", 50, 50},
		{"-3", 50, -3},
	}
	for _, c := range cases {
		if got := ParseIntDefault(c.in, c.def); got != c.want {
			t.Fatalf("ParseIntDefault(%q,%d)=%d want %d", c.in, c.def, got, c.want)
		}
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(500, 1, 200); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := ClampInt(-1, 1, 200); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := ClampInt(30, 1, 200); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestNormalizeWallet(t *testing.T) {
	if got := NormalizeWallet("  0xAbCDef  "); got != "0xabcdef" {
		t.Fatalf("unexpected %q", got)
	}
	if got := ShortAddr("0x1234567890abcdef"); got != "0x123456..." {
		t.Fatalf("unexpected %q", got)
	}
}
