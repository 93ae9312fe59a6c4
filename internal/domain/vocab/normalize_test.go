package vocab

import (
	"testing"
)

func TestNormalizeFoldsNukta(t *testing.T) {
	if got, want := Normalize("ज़िला"), Normalize("जिला"); got != want {
		t.Fatalf("nukta fold mismatch: %q vs %q", got, want)
	}
	if got, want := Normalize("क़िला"), Normalize("किला"); got != want {
		t.Fatalf("nukta fold mismatch: %q vs %q", got, want)
	}
}

func TestNormalizeStripsZeroWidthAndPunctuation(t *testing.T) {
	if got := Normalize("रैली!"); got != "रैली" {
		t.Fatalf("punctuation not stripped: %q", got)
	}
	if got := Normalize("रै‍ली"); got != "रैली" {
		t.Fatalf("zero-width joiner not stripped: %q", got)
	}
	if got := Normalize("  बैठक   हुई  "); got != "बैठक हुई" {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
}

func TestNormalizeLowercasesLatin(t *testing.T) {
	if got := Normalize("Raipur"); got != "raipur" {
		t.Fatalf("latin not lowercased: %q", got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("  !!  "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestCodeForConvergesSpellings(t *testing.T) {
	if CodeFor("ज़िला पंचायत") != CodeFor("जिला  पंचायत") {
		t.Fatalf("codes for spelling variants diverge")
	}
	if got := CodeFor("किसान योजना"); got != "किसान_योजना" {
		t.Fatalf("unexpected code: %q", got)
	}
}
