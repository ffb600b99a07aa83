// Package japanese validates and normalizes Japanese-script tool inputs
// before they are forwarded to the Kanji Alive upstream API.
package japanese

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Script patterns matched after NFKC normalization. The katakana and
// hiragana classes include the combining voicing marks and the middle dot
// that appear in dictionary readings.
var (
	katakanaPattern  = regexp.MustCompile(`^[\x{30A0}-\x{30FF}\x{31F0}-\x{31FF}ー・]+$`)
	hiraganaPattern  = regexp.MustCompile(`^[\x{3040}-\x{309F}\x{3099}-\x{309C}.・]+$`)
	romajiPattern    = regexp.MustCompile(`^[a-zA-Z-]+$`)
	kunRomajiPattern = regexp.MustCompile(`^[a-zA-Z.-]+$`)
	listPattern      = regexp.MustCompile(`^(ap|mac)(:c\d+)?$`)
)

// radicalPositions maps accepted radical position names, both the romaji
// identifiers the upstream expects and their hiragana spellings, to the
// canonical romaji form.
var radicalPositions = map[string]string{
	"hen":      "hen",
	"tsukuri":  "tsukuri",
	"kanmuri":  "kanmuri",
	"ashi":     "ashi",
	"tare":     "tare",
	"nyou":     "nyou",
	"nyo":      "nyou",
	"kamae":    "kamae",
	"へん":       "hen",
	"つくり":      "tsukuri",
	"かんむり":     "kanmuri",
	"あし":       "ashi",
	"たれ":       "tare",
	"にょう":      "nyou",
	"かまえ":      "kamae",
}

// Normalize applies NFKC normalization and trims surrounding whitespace.
// NFKC folds full-width Latin and half-width kana into their canonical
// forms so the same query always produces the same upstream request.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// CheckControlChars rejects strings containing null bytes or other control
// characters. Tab, newline and carriage return are tolerated because they
// are stripped by Normalize before this runs on trimmed input.
func CheckControlChars(field, s string) error {
	for _, r := range s {
		if r == 0 {
			return fmt.Errorf("%s contains a null byte", field)
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return fmt.Errorf("%s contains control character %q", field, r)
		}
		if r >= 0x7F && r <= 0x9F {
			return fmt.Errorf("%s contains control character %q", field, r)
		}
	}
	return nil
}

// IsKanji reports whether r falls in the CJK Unified Ideographs block or
// Extension A.
func IsKanji(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

// ValidateKanjiCharacter checks that s is exactly one kanji character.
func ValidateKanjiCharacter(s string) (string, error) {
	s = Normalize(s)
	if err := CheckControlChars("character", s); err != nil {
		return "", err
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return "", fmt.Errorf("character must be a single kanji, got %d characters", len(runes))
	}
	if !IsKanji(runes[0]) {
		return "", fmt.Errorf("character %q is not a kanji", s)
	}
	return s, nil
}

// maxQueryRunes caps free-text search terms at the length the upstream
// accepts.
const maxQueryRunes = 100

// ValidateQuery checks a free-text search term: non-empty after
// normalization, at most 100 characters, and free of control characters.
// The upstream accepts English meanings, kanji and kana here, so no
// script restriction applies.
func ValidateQuery(s string) (string, error) {
	s = Normalize(s)
	if err := CheckControlChars("query", s); err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	if n := utf8.RuneCountInString(s); n > maxQueryRunes {
		return "", fmt.Errorf("query is %d characters, maximum is %d", n, maxQueryRunes)
	}
	return s, nil
}

// ValidateOnyomi checks an on reading: katakana, or romaji which is
// lowercased for the upstream.
func ValidateOnyomi(s string) (string, error) {
	s = Normalize(s)
	if err := CheckControlChars("on", s); err != nil {
		return "", err
	}
	if katakanaPattern.MatchString(s) {
		return s, nil
	}
	if romajiPattern.MatchString(s) {
		return strings.ToLower(s), nil
	}
	return "", fmt.Errorf("on reading %q must be katakana or romaji", s)
}

// ValidateKunyomi checks a kun reading: hiragana (dots and middle dots mark
// okurigana boundaries), or romaji which is lowercased.
func ValidateKunyomi(s string) (string, error) {
	s = Normalize(s)
	if err := CheckControlChars("kun", s); err != nil {
		return "", err
	}
	if hiraganaPattern.MatchString(s) {
		return s, nil
	}
	if kunRomajiPattern.MatchString(s) {
		return strings.ToLower(s), nil
	}
	return "", fmt.Errorf("kun reading %q must be hiragana or romaji", s)
}

// NormalizeRadicalPosition maps a radical position given in romaji or
// hiragana to the canonical romaji identifier.
func NormalizeRadicalPosition(s string) (string, error) {
	s = strings.ToLower(Normalize(s))
	if pos, ok := radicalPositions[s]; ok {
		return pos, nil
	}
	return "", fmt.Errorf("radical position %q is not recognized; expected hen, tsukuri, kanmuri, ashi, tare, nyou or kamae", s)
}

// ValidateStudyList checks a study list code: "ap" or "mac", optionally
// suffixed with a chapter like "ap:c3".
func ValidateStudyList(s string) (string, error) {
	s = strings.ToLower(Normalize(s))
	if !listPattern.MatchString(s) {
		return "", fmt.Errorf("list %q is not recognized; expected ap or mac, optionally with a chapter such as ap:c3", s)
	}
	return s, nil
}

// ValidateStrokeCount checks a kanji stroke count against the range the
// upstream accepts.
func ValidateStrokeCount(n int) (int, error) {
	if n < 1 || n > 30 {
		return 0, fmt.Errorf("stroke count %d out of range 1-30", n)
	}
	return n, nil
}

// ValidateGrade checks a school grade level.
func ValidateGrade(n int) (int, error) {
	if n < 1 || n > 6 {
		return 0, fmt.Errorf("grade %d out of range 1-6", n)
	}
	return n, nil
}
