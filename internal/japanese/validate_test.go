package japanese

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  parent  ", "parent"},
		{"fullwidth latin folds to ascii", "ｐａｒｅｎｔ", "parent"},
		{"halfwidth katakana folds to full", "ｵﾔ", "オヤ"},
		{"kanji unchanged", "親", "親"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheckControlChars(t *testing.T) {
	if err := CheckControlChars("query", "parent"); err != nil {
		t.Errorf("clean string rejected: %v", err)
	}
	if err := CheckControlChars("query", "par\x00ent"); err == nil {
		t.Error("null byte accepted")
	}
	if err := CheckControlChars("query", "par\x01ent"); err == nil {
		t.Error("C0 control accepted")
	}
	if err := CheckControlChars("query", "parent"); err == nil {
		t.Error("C1 control accepted")
	}
}

func TestValidateKanjiCharacter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"single kanji", "親", "親", false},
		{"extension A kanji", "㐀", "㐀", false},
		{"two kanji", "親子", "", true},
		{"hiragana", "あ", "", true},
		{"latin", "a", "", true},
		{"empty", "", "", true},
		{"kanji with whitespace trims", " 親 ", "親", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateKanjiCharacter(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKanjiCharacter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateKanjiCharacter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateOnyomi(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"katakana", "シン", "シン", false},
		{"katakana with prolonged sound", "コー", "コー", false},
		{"romaji lowercased", "SHIN", "shin", false},
		{"romaji with hyphen", "ko-u", "ko-u", false},
		{"hiragana rejected", "しん", "", true},
		{"digits rejected", "shin1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateOnyomi(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateOnyomi(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateOnyomi(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateKunyomi(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"hiragana", "おや", "おや", false},
		{"hiragana with okurigana dot", "した.しい", "した.しい", false},
		{"romaji lowercased", "OYA", "oya", false},
		{"romaji with dot", "shita.shii", "shita.shii", false},
		{"katakana rejected", "オヤ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateKunyomi(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKunyomi(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateKunyomi(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeRadicalPosition(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"romaji passes through", "hen", "hen", false},
		{"uppercase romaji folds", "Kanmuri", "kanmuri", false},
		{"hiragana maps to romaji", "つくり", "tsukuri", false},
		{"nyo variant maps to nyou", "nyo", "nyou", false},
		{"hiragana nyou", "にょう", "nyou", false},
		{"unknown rejected", "left", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRadicalPosition(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeRadicalPosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeRadicalPosition(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateStudyList(t *testing.T) {
	valid := []string{"ap", "mac", "ap:c3", "mac:c12", "AP:C3"}
	for _, in := range valid {
		got, err := ValidateStudyList(in)
		if err != nil {
			t.Errorf("ValidateStudyList(%q) unexpected error: %v", in, err)
			continue
		}
		if got != strings.ToLower(in) {
			t.Errorf("ValidateStudyList(%q) = %q, want %q", in, got, strings.ToLower(in))
		}
	}

	invalid := []string{"jlpt", "ap:3", "ap:c", "mac:", ""}
	for _, in := range invalid {
		if _, err := ValidateStudyList(in); err == nil {
			t.Errorf("ValidateStudyList(%q) accepted, want error", in)
		}
	}
}

func TestValidateStrokeCount(t *testing.T) {
	if _, err := ValidateStrokeCount(0); err == nil {
		t.Error("stroke count 0 accepted")
	}
	if _, err := ValidateStrokeCount(31); err == nil {
		t.Error("stroke count 31 accepted")
	}
	if got, err := ValidateStrokeCount(30); err != nil || got != 30 {
		t.Errorf("ValidateStrokeCount(30) = %d, %v", got, err)
	}
	if got, err := ValidateStrokeCount(16); err != nil || got != 16 {
		t.Errorf("ValidateStrokeCount(16) = %d, %v", got, err)
	}
}

func TestValidateQuery(t *testing.T) {
	if _, err := ValidateQuery("   "); err == nil {
		t.Error("blank query accepted")
	}
	got, err := ValidateQuery(" parent ")
	if err != nil || got != "parent" {
		t.Errorf("ValidateQuery(\" parent \") = %q, %v", got, err)
	}
	if _, err := ValidateQuery("pa\x00rent"); err == nil {
		t.Error("null byte in query accepted")
	}
}

func TestValidateQueryLength(t *testing.T) {
	atLimit := strings.Repeat("親", 100)
	if got, err := ValidateQuery(atLimit); err != nil || got != atLimit {
		t.Errorf("100-character query rejected: %v", err)
	}
	if _, err := ValidateQuery(strings.Repeat("親", 101)); err == nil {
		t.Error("101-character query accepted")
	}
}
