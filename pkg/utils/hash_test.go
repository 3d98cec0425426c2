package utils

import "testing"

func TestContentHashStable(t *testing.T) {
	t.Parallel()

	a := ContentHash("Great laksa, slow service.", 4, "Aina")
	b := ContentHash("Great laksa, slow service.", 4, "Aina")
	if a != b {
		t.Fatalf("hash not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestContentHashDistinguishesFields(t *testing.T) {
	t.Parallel()

	base := ContentHash("Nice", 5, "Lee")
	cases := map[string]string{
		"text":   ContentHash("Nice!", 5, "Lee"),
		"rating": ContentHash("Nice", 4, "Lee"),
		"author": ContentHash("Nice", 5, "Lim"),
	}
	for name, h := range cases {
		if h == base {
			t.Fatalf("changing %s did not change the hash", name)
		}
	}

	// Field boundaries must not be ambiguous.
	if ContentHash("a1", 1, "b") == ContentHash("a", 11, "b") {
		t.Fatalf("field boundary collision")
	}
}
