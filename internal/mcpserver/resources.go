package mcpserver

import (
	"encoding/json"
	"fmt"
	"os"
)

// URIs of the built-in reference resources.
const (
	RadicalPositionsURI = "kanjialive://info/radical-positions"
	SearchParametersURI = "kanjialive://info/search-parameters"
	RadicalsURI         = "kanjialive://info/radicals"
)

// radicalPositionsDoc describes the seven radical position classes the
// advanced search accepts.
var radicalPositionsDoc = []byte(`{
  "positions": [
    {"name": "hen", "hiragana": "へん", "location": "left side of the kanji"},
    {"name": "tsukuri", "hiragana": "つくり", "location": "right side of the kanji"},
    {"name": "kanmuri", "hiragana": "かんむり", "location": "top of the kanji"},
    {"name": "ashi", "hiragana": "あし", "location": "bottom of the kanji"},
    {"name": "tare", "hiragana": "たれ", "location": "wraps the top and left"},
    {"name": "nyou", "hiragana": "にょう", "location": "wraps the left and bottom"},
    {"name": "kamae", "hiragana": "かまえ", "location": "encloses the kanji"}
  ]
}`)

// searchParametersDoc documents the advanced search parameters.
var searchParametersDoc = []byte(`{
  "parameters": [
    {"name": "on", "description": "onyomi reading, katakana or romaji"},
    {"name": "kun", "description": "kunyomi reading, hiragana or romaji"},
    {"name": "kem", "description": "exact English meaning of the kanji"},
    {"name": "kanji", "description": "a single kanji character"},
    {"name": "rjn", "description": "Japanese name of the radical, hiragana or romaji"},
    {"name": "rem", "description": "exact English meaning of the radical"},
    {"name": "rpos", "description": "radical position: hen, tsukuri, kanmuri, ashi, tare, nyou, kamae"},
    {"name": "ks", "description": "kanji stroke count, 1-30"},
    {"name": "rs", "description": "radical stroke count, 1-17"},
    {"name": "grade", "description": "Japanese school grade, 1-6"},
    {"name": "list", "description": "study list: ap or mac, optional chapter like ap:c3"}
  ]
}`)

func (s *Server) registerStaticResources() {
	s.RegisterResource(Resource{
		URI:         RadicalPositionsURI,
		Name:        "Radical Positions",
		Description: "The seven radical position classes accepted by advanced search, with Japanese names.",
		MIMEType:    "application/json",
		Data:        radicalPositionsDoc,
	})
	s.RegisterResource(Resource{
		URI:         SearchParametersURI,
		Name:        "Search Parameters",
		Description: "Reference for all advanced search parameters and their accepted values.",
		MIMEType:    "application/json",
		Data:        searchParametersDoc,
	})
}

// RegisterRadicalsFile loads a radicals dataset from path and registers it
// as the radicals resource. Called at startup when data.radicals_file is
// configured; a configured but unreadable file is a startup error.
func (s *Server) RegisterRadicalsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read radicals file: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("radicals file %s is not valid JSON", path)
	}

	s.RegisterResource(Resource{
		URI:         RadicalsURI,
		Name:        "Radicals",
		Description: "The full radicals dataset with stroke counts, readings and positions.",
		MIMEType:    "application/json",
		Data:        data,
	})
	return nil
}
