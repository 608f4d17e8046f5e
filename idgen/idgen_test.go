package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for range 100 {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("ses_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "ses_") {
		t.Fatalf("id %q missing prefix", id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse(New()); err != nil {
		t.Fatalf("Parse of fresh id: %v", err)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid id")
	}
	if _, err := Parse("tpl_not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid prefixed id")
	}
}
