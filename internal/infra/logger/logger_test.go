package logger

import (
	"context"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"john.doe@example.com": "joh***@example.com",
		"a@x.com":              "a***@x.com",
		"not-an-email":         "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIdentifier(t *testing.T) {
	if got := MaskIdentifier("alice"); got != "al***" {
		t.Fatalf("unexpected username mask %q", got)
	}
	if got := MaskIdentifier("alice@example.com"); got != "ali***@example.com" {
		t.Fatalf("unexpected email mask %q", got)
	}
	if got := MaskIdentifier("ab"); got != "***" {
		t.Fatalf("unexpected short mask %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.*.*" {
		t.Fatalf("unexpected ipv4 mask %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected ipv6 mask %q", got)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestMaskIPRejectsGarbage(t *testing.T) {
	if got := MaskIP(""); got != "" {
		t.Fatalf("expected empty mask, got %q", got)
	}
	if got := MaskIP("not-an-ip"); got != "***" {
		t.Fatalf("expected opaque mask, got %q", got)
	}
	if got := MaskIP("::ffff:10.1.2.3"); got != "10.1.*.*" {
		t.Fatalf("expected mapped ipv4 mask, got %q", got)
	}
}
