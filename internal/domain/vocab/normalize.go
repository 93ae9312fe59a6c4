package vocab

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Devanagari precomposed nukta letters fold to their base consonant so that
// क़िला and किला (and ज़िला / जिला) match the same alias.
var nuktaFold = map[rune]rune{
	'ऩ': 'न', // ऩ -> न
	'ऱ': 'र', // ऱ -> र
	'ऴ': 'ळ', // ऴ -> ळ
	'क़': 'क', // क़ -> क
	'ख़': 'ख', // ख़ -> ख
	'ग़': 'ग', // ग़ -> ग
	'ज़': 'ज', // ज़ -> ज
	'ड़': 'ड', // ड़ -> ड
	'ढ़': 'ढ', // ढ़ -> ढ
	'फ़': 'फ', // फ़ -> फ
	'य़': 'य', // य़ -> य
}

const (
	nuktaSign      = '़'
	zeroWidthJoin  = '‍'
	zeroWidthSpace = '​'
	zeroWidthNon   = '‌'
)

// Normalize canonicalizes surface text for alias comparison: NFC, lower-case
// for Latin, nukta folding for Devanagari, punctuation and zero-width
// characters stripped, internal whitespace collapsed to single spaces.
func Normalize(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false

	for _, r := range text {
		switch {
		case r == nuktaSign, r == zeroWidthJoin, r == zeroWidthSpace, r == zeroWidthNon:
			continue
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		}

		if folded, ok := nuktaFold[r]; ok {
			r = folded
		}
		b.WriteRune(unicode.ToLower(r))
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}

// CodeFor derives a stable canonical code from a surface form. Entries
// learned from different spellings of the same value converge on one code.
func CodeFor(text string) string {
	return strings.ReplaceAll(Normalize(text), " ", "_")
}
