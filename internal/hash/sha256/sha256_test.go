// Package sha256 includes tests for the hashing helpers.
package sha256

import "testing"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	again, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

// TestSignatureOrderSensitive ensures reordering locators changes the digest.
func TestSignatureOrderSensitive(t *testing.T) {
	t.Parallel()

	a := Signature([]string{"https://example.com/1.html", "https://example.com/2.html"})
	b := Signature([]string{"https://example.com/2.html", "https://example.com/1.html"})
	if a == b {
		t.Fatal("expected different signatures for reordered locators")
	}
	if a != Signature([]string{"https://example.com/1.html", "https://example.com/2.html"}) {
		t.Fatal("expected signature to be deterministic")
	}
}

// TestNovelIDStable ensures the derived identifier is stable and short.
func TestNovelIDStable(t *testing.T) {
	t.Parallel()

	id := NovelID("https://example.com/book/")
	if len(id) != 12 {
		t.Fatalf("expected 12-char id, got %q", id)
	}
	if id != NovelID("https://example.com/book/") {
		t.Fatal("expected stable id for same locator")
	}
	if id == NovelID("https://example.com/other/") {
		t.Fatal("expected different ids for different locators")
	}
}
