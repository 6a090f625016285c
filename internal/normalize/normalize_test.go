package normalize

import "testing"

func TestCanonicalRelative(t *testing.T) {
	got, ok := Canonical("/shop/shoes", "https://www.Example.com/home")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := "https://www.example.com/shop/shoes"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCanonicalStripsTrailingSlash(t *testing.T) {
	got, ok := Canonical("https://shop.example.com/shoes/", "")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "https://shop.example.com/shoes" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalKeepsRootSlash(t *testing.T) {
	got, ok := Canonical("https://shop.example.com/", "")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "https://shop.example.com/" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalStripsTrackingParams(t *testing.T) {
	got, ok := Canonical("https://shop.example.com/shoes?utm_source=ig&gclid=abc&page=2", "")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "https://shop.example.com/shoes?page=2" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalStripsFragment(t *testing.T) {
	got, ok := Canonical("https://shop.example.com/shoes#details", "")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "https://shop.example.com/shoes" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalRejectsJavascriptHref(t *testing.T) {
	if _, ok := Canonical("javascript:void(0)", "https://shop.example.com/"); ok {
		t.Fatalf("expected javascript: href to be rejected")
	}
}

func TestCanonicalRejectsUnresolvableRelative(t *testing.T) {
	if _, ok := Canonical("/shoes", ""); ok {
		t.Fatalf("expected relative href with no base to be rejected")
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	inputs := []string{
		"https://WWW.Example.com/Shoes/?utm_source=x&page=2#frag",
		"http://shop.example.com/",
		"https://shop.example.com/a/b/c/",
	}
	for _, in := range inputs {
		once, ok := Canonical(in, "")
		if !ok {
			t.Fatalf("first pass failed for %q", in)
		}
		twice, ok := Canonical(once, "")
		if !ok {
			t.Fatalf("second pass failed for %q", once)
		}
		if once != twice {
			t.Fatalf("not idempotent: %q != %q", once, twice)
		}
	}
}

func TestSameRegistrableDomain(t *testing.T) {
	if !SameRegistrableDomain("shop.example.com", "www.example.com") {
		t.Fatalf("expected same registrable domain")
	}
	if SameRegistrableDomain("example.com", "example.org") {
		t.Fatalf("expected different registrable domain")
	}
}
