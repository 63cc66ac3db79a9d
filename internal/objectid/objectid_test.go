package objectid

import "testing"

func TestEqualityIsByValue(t *testing.T) {
	a := New("foo")
	b := New("foo")
	c := New("bar")

	if a != b {
		t.Fatalf("expected %v == %v", a, b)
	}
	if a == c {
		t.Fatalf("expected %v != %v", a, c)
	}
}

func TestUsableAsMapKey(t *testing.T) {
	m := map[ID]int{}
	m[New("foo")] = 1
	m[New("bar")] = 2

	if m[New("foo")] != 1 {
		t.Fatalf("expected lookup by value-equal key to hit")
	}
}

func TestZeroValue(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Fatalf("expected zero ID to report IsZero")
	}
	if New("x").IsZero() {
		t.Fatalf("expected non-empty ID to not report IsZero")
	}
}
