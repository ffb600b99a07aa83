package kanjialive

// Field allowlists for the kanji detail endpoint. The upstream returns a
// large record that includes internal fields (raw stroke timings, source
// file names); only the documented fields are forwarded to clients.
var (
	kanjiFields = map[string]bool{
		"character": true,
		"meaning":   true,
		"strokes":   true,
		"onyomi":    true,
		"kunyomi":   true,
		"video":     true,
	}
	radicalFields = map[string]bool{
		"character": true,
		"strokes":   true,
		"image":     true,
		"position":  true,
		"name":      true,
		"meaning":   true,
		"animation": true,
	}
	referenceFields = map[string]bool{
		"grade":          true,
		"kodansha":       true,
		"classic_nelson": true,
	}
	exampleFields = map[string]bool{
		"japanese": true,
		"meaning":  true,
		"audio":    true,
	}
)

// FilterDetail reduces a raw kanji detail payload to the documented fields.
// Unknown sections and fields are dropped; missing ones stay missing rather
// than being filled with placeholders.
func FilterDetail(detail map[string]interface{}) map[string]interface{} {
	if detail == nil {
		return nil
	}

	out := make(map[string]interface{}, 4)

	if kanji, ok := detail["kanji"].(map[string]interface{}); ok {
		filtered := filterMap(kanji, kanjiFields)
		if strokes, ok := filtered["strokes"].(map[string]interface{}); ok {
			// Flatten to the bare count; the timings sub-object is upstream-internal.
			if count, ok := strokes["count"]; ok {
				filtered["strokes"] = count
			} else {
				delete(filtered, "strokes")
			}
		}
		if video, ok := filtered["video"].(map[string]interface{}); ok {
			filtered["video"] = filterMap(video, map[string]bool{"mp4": true, "webm": true, "poster": true})
		}
		out["kanji"] = filtered
	}

	if radical, ok := detail["radical"].(map[string]interface{}); ok {
		out["radical"] = filterMap(radical, radicalFields)
	}

	if refs, ok := detail["references"].(map[string]interface{}); ok {
		out["references"] = filterMap(refs, referenceFields)
	}

	if examples, ok := detail["examples"].([]interface{}); ok {
		filtered := make([]interface{}, 0, len(examples))
		for _, e := range examples {
			ex, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			filtered = append(filtered, filterMap(ex, exampleFields))
		}
		out["examples"] = filtered
	}

	return out
}

func filterMap(m map[string]interface{}, allowed map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(allowed))
	for k, v := range m {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}
