// Package render formats Kanji Alive API payloads as markdown for MCP
// tool results.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxExamples caps the example words included in a kanji detail document
// so a single tool result stays readable in a chat context.
const maxExamples = 15

// markdownEscaper rewrites characters that would otherwise be interpreted
// as markdown syntax when they appear inside user-controlled field values.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`|`, `\|`,
	`#`, `\#`,
)

// Escape neutralizes markdown control characters in s.
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

// SearchMeta describes the query that produced a set of search results.
// It renders as a short header above the results table.
type SearchMeta struct {
	ResultsReturned int
	QueryParameters map[string]string
	Timestamp       time.Time
}

func (m SearchMeta) header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Kanji Search Results\n\n")
	fmt.Fprintf(&b, "- Results returned: %d\n", m.ResultsReturned)
	if len(m.QueryParameters) > 0 {
		keys := make([]string, 0, len(m.QueryParameters))
		for k := range m.QueryParameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, Escape(m.QueryParameters[k])))
		}
		fmt.Fprintf(&b, "- Query: %s\n", strings.Join(pairs, ", "))
	}
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(&b, "- Retrieved: %s\n", m.Timestamp.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")
	return b.String()
}

// SearchResults renders a list of search hits as a markdown table.
// Each hit is the upstream's per-kanji summary object.
func SearchResults(results []map[string]interface{}, meta SearchMeta) string {
	var b strings.Builder
	b.WriteString(meta.header())

	if len(results) == 0 {
		b.WriteString("No kanji matched the query.\n")
		return b.String()
	}

	b.WriteString("| Kanji | Onyomi | Kunyomi | Meaning |\n")
	b.WriteString("|-------|--------|---------|--------|\n")
	for _, r := range results {
		kanji := nested(r, "kanji")
		char := str(kanji, "character")
		on := str(nested(kanji, "onyomi"), "katakana")
		if on == "" {
			on = str(nested(kanji, "onyomi"), "romaji")
		}
		kun := str(nested(kanji, "kunyomi"), "hiragana")
		if kun == "" {
			kun = str(nested(kanji, "kunyomi"), "romaji")
		}
		meaning := str(nested(kanji, "meaning"), "english")
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			Escape(char), Escape(on), Escape(kun), Escape(meaning))
	}
	return b.String()
}

// KanjiDetail renders a full kanji detail payload as a markdown document
// with readings, radical information, example words and media links.
func KanjiDetail(detail map[string]interface{}) string {
	var b strings.Builder

	kanji := nested(detail, "kanji")
	char := str(kanji, "character")
	fmt.Fprintf(&b, "# Kanji: %s\n\n", Escape(char))

	if meaning := str(nested(kanji, "meaning"), "english"); meaning != "" {
		fmt.Fprintf(&b, "**Meaning:** %s\n\n", Escape(meaning))
	}

	b.WriteString("## Readings\n\n")
	on := nested(kanji, "onyomi")
	kun := nested(kanji, "kunyomi")
	fmt.Fprintf(&b, "- Onyomi: %s\n", readingLine(str(on, "katakana"), str(on, "romaji")))
	fmt.Fprintf(&b, "- Kunyomi: %s\n\n", readingLine(str(kun, "hiragana"), str(kun, "romaji")))

	if count, ok := num(kanji, "strokes"); ok {
		fmt.Fprintf(&b, "**Strokes:** %d\n\n", count)
	}

	if radical := nested(detail, "radical"); radical != nil {
		b.WriteString("## Radical\n\n")
		fmt.Fprintf(&b, "- Character: %s\n", Escape(str(radical, "character")))
		name := nested(radical, "name")
		fmt.Fprintf(&b, "- Name: %s (%s)\n", Escape(str(name, "hiragana")), Escape(str(name, "romaji")))
		if count, ok := num(radical, "strokes"); ok {
			fmt.Fprintf(&b, "- Strokes: %d\n", count)
		}
		if pos := nested(radical, "position"); pos != nil {
			if hira := str(pos, "hiragana"); hira != "" {
				fmt.Fprintf(&b, "- Position: %s (%s)\n", Escape(hira), Escape(str(pos, "romaji")))
			}
		}
		b.WriteString("\n")
	}

	if refs := nested(detail, "references"); refs != nil {
		b.WriteString("## References\n\n")
		if grade, ok := num(refs, "grade"); ok {
			fmt.Fprintf(&b, "- Grade: %d\n", grade)
		}
		if kodansha := str(refs, "kodansha"); kodansha != "" {
			fmt.Fprintf(&b, "- Kodansha: %s\n", Escape(kodansha))
		}
		if nelson := str(refs, "classic_nelson"); nelson != "" {
			fmt.Fprintf(&b, "- Classic Nelson: %s\n", Escape(nelson))
		}
		b.WriteString("\n")
	}

	if examples, ok := detail["examples"].([]interface{}); ok && len(examples) > 0 {
		b.WriteString("## Examples\n\n")
		shown := examples
		if len(shown) > maxExamples {
			shown = shown[:maxExamples]
		}
		for _, e := range shown {
			ex, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			japanese := str(ex, "japanese")
			meaning := str(nested(ex, "meaning"), "english")
			line := fmt.Sprintf("- %s: %s", Escape(japanese), Escape(meaning))
			if mp3 := str(nested(ex, "audio"), "mp3"); mp3 != "" {
				line += fmt.Sprintf(" ([audio](%s))", mp3)
			}
			b.WriteString(line + "\n")
		}
		if len(examples) > maxExamples {
			fmt.Fprintf(&b, "\n_%d more examples omitted._\n", len(examples)-maxExamples)
		}
		b.WriteString("\n")
	}

	if video := str(nested(kanji, "video"), "mp4"); video != "" {
		fmt.Fprintf(&b, "**Stroke order video:** [mp4](%s)\n", video)
	}

	return b.String()
}

// splitReadings splits a reading list joined with ASCII or Japanese commas.
func splitReadings(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '、' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readingLine pairs each kana reading with its romaji counterpart by
// position. Readings without a romaji partner render bare.
func readingLine(kana, romaji string) string {
	kanaParts := splitReadings(kana)
	romajiParts := splitReadings(romaji)
	if len(kanaParts) == 0 {
		kanaParts = romajiParts
		romajiParts = nil
	}
	pairs := make([]string, 0, len(kanaParts))
	for i, k := range kanaParts {
		if i < len(romajiParts) {
			pairs = append(pairs, fmt.Sprintf("%s (%s)", Escape(k), Escape(romajiParts[i])))
		} else {
			pairs = append(pairs, Escape(k))
		}
	}
	return strings.Join(pairs, ", ")
}

// nested returns m[key] as a map, or nil when absent or a different type.
func nested(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func str(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// num reads a numeric field. Upstream JSON numbers decode as float64;
// some reference fields arrive as strings of digits.
func num(m map[string]interface{}, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}
