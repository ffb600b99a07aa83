package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/kanjialive/kanjialive-mcp-server/internal/japanese"
	"github.com/kanjialive/kanjialive-mcp-server/internal/render"
)

func (s *Server) registerKanjiTools() {
	s.RegisterTool(Tool{
		Name:        "kanjialive_search_basic",
		Title:       "Basic Kanji Search",
		Description: "Search kanji by English meaning or Japanese reading. Returns a table of matching kanji with readings and meanings.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "English meaning (e.g. \"parent\"), kanji, or kana reading to search for.",
				},
			},
			"required": []string{"query"},
		},
		Handler: s.handleSearchBasic,
	})

	s.RegisterTool(Tool{
		Name:        "kanjialive_search_advanced",
		Title:       "Advanced Kanji Search",
		Description: "Search kanji by onyomi, kunyomi, meaning, a specific kanji character, radical name, meaning or position, stroke counts, school grade, or study list. At least one parameter is required. Readings accept kana or romaji.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"on": map[string]interface{}{
					"type":        "string",
					"description": "Onyomi reading in katakana or romaji (e.g. \"シン\" or \"shin\").",
				},
				"kun": map[string]interface{}{
					"type":        "string",
					"description": "Kunyomi reading in hiragana or romaji (e.g. \"おや\" or \"oya\").",
				},
				"kem": map[string]interface{}{
					"type":        "string",
					"description": "Exact English meaning of the kanji.",
				},
				"kanji": map[string]interface{}{
					"type":        "string",
					"description": "A single kanji character to look up directly (e.g. \"親\").",
				},
				"rjn": map[string]interface{}{
					"type":        "string",
					"description": "Japanese name of the radical in hiragana or romaji.",
				},
				"rem": map[string]interface{}{
					"type":        "string",
					"description": "Exact English meaning of the radical.",
				},
				"rpos": map[string]interface{}{
					"type":        "string",
					"description": "Radical position: hen, tsukuri, kanmuri, ashi, tare, nyou or kamae (hiragana also accepted).",
				},
				"ks": map[string]interface{}{
					"type":        "integer",
					"description": "Kanji stroke count (1-30).",
				},
				"rs": map[string]interface{}{
					"type":        "integer",
					"description": "Radical stroke count.",
				},
				"grade": map[string]interface{}{
					"type":        "integer",
					"description": "Japanese school grade level (1-6).",
				},
				"list": map[string]interface{}{
					"type":        "string",
					"description": "Study list: \"ap\" or \"mac\", optionally with a chapter such as \"ap:c3\".",
				},
			},
		},
		Handler: s.handleSearchAdvanced,
	})

	s.RegisterTool(Tool{
		Name:        "kanjialive_get_kanji_details",
		Title:       "Kanji Details",
		Description: "Fetch the full record for a single kanji: meanings, readings, radical, stroke order media, references and example words with audio.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"character": map[string]interface{}{
					"type":        "string",
					"description": "A single kanji character (e.g. \"親\").",
				},
			},
			"required": []string{"character"},
		},
		Handler: s.handleKanjiDetails,
	})
}

type basicSearchArgs struct {
	Query string `json:"query"`
}

func (s *Server) handleSearchBasic(ctx context.Context, args json.RawMessage) (*ToolResult, error) {
	var in basicSearchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: expected {\"query\": string}")
	}

	query, err := japanese.ValidateQuery(in.Query)
	if err != nil {
		return nil, err
	}

	results, err := s.api.SearchBasic(ctx, query)
	if err != nil {
		return nil, err
	}

	doc := render.SearchResults(results, render.SearchMeta{
		ResultsReturned: len(results),
		QueryParameters: map[string]string{"query": query},
		Timestamp:       time.Now(),
	})

	res := TextResult(doc)
	res.StructuredContent = map[string]interface{}{"results": results}
	return res, nil
}

type advancedSearchArgs struct {
	On    string `json:"on"`
	Kun   string `json:"kun"`
	Kem   string `json:"kem"`
	Kanji string `json:"kanji"`
	Rjn   string `json:"rjn"`
	Rem   string `json:"rem"`
	Rpos  string `json:"rpos"`
	Ks    int    `json:"ks"`
	Rs    int    `json:"rs"`
	Grade int    `json:"grade"`
	List  string `json:"list"`
}

func (s *Server) handleSearchAdvanced(ctx context.Context, args json.RawMessage) (*ToolResult, error) {
	var in advancedSearchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments for advanced search")
	}

	params := url.Values{}

	if in.On != "" {
		on, err := japanese.ValidateOnyomi(in.On)
		if err != nil {
			return nil, err
		}
		params.Set("on", on)
	}
	if in.Kun != "" {
		kun, err := japanese.ValidateKunyomi(in.Kun)
		if err != nil {
			return nil, err
		}
		params.Set("kun", kun)
	}
	if in.Kem != "" {
		kem, err := japanese.ValidateQuery(in.Kem)
		if err != nil {
			return nil, err
		}
		params.Set("kem", kem)
	}
	if in.Kanji != "" {
		kanji, err := japanese.ValidateKanjiCharacter(in.Kanji)
		if err != nil {
			return nil, err
		}
		params.Set("kanji", kanji)
	}
	if in.Rjn != "" {
		rjn, err := japanese.ValidateKunyomi(in.Rjn)
		if err != nil {
			return nil, err
		}
		params.Set("rjn", rjn)
	}
	if in.Rem != "" {
		rem, err := japanese.ValidateQuery(in.Rem)
		if err != nil {
			return nil, err
		}
		params.Set("rem", rem)
	}
	if in.Rpos != "" {
		rpos, err := japanese.NormalizeRadicalPosition(in.Rpos)
		if err != nil {
			return nil, err
		}
		params.Set("rpos", rpos)
	}
	if in.Ks != 0 {
		ks, err := japanese.ValidateStrokeCount(in.Ks)
		if err != nil {
			return nil, err
		}
		params.Set("ks", strconv.Itoa(ks))
	}
	if in.Rs != 0 {
		if in.Rs < 1 || in.Rs > 17 {
			return nil, fmt.Errorf("radical stroke count %d out of range 1-17", in.Rs)
		}
		params.Set("rs", strconv.Itoa(in.Rs))
	}
	if in.Grade != 0 {
		grade, err := japanese.ValidateGrade(in.Grade)
		if err != nil {
			return nil, err
		}
		params.Set("grade", strconv.Itoa(grade))
	}
	if in.List != "" {
		list, err := japanese.ValidateStudyList(in.List)
		if err != nil {
			return nil, err
		}
		params.Set("list", list)
	}

	if len(params) == 0 {
		return nil, fmt.Errorf("advanced search requires at least one parameter")
	}

	results, err := s.api.SearchAdvanced(ctx, params)
	if err != nil {
		return nil, err
	}

	queryParams := make(map[string]string, len(params))
	for k := range params {
		queryParams[k] = params.Get(k)
	}
	doc := render.SearchResults(results, render.SearchMeta{
		ResultsReturned: len(results),
		QueryParameters: queryParams,
		Timestamp:       time.Now(),
	})

	res := TextResult(doc)
	res.StructuredContent = map[string]interface{}{"results": results}
	return res, nil
}

type detailArgs struct {
	Character string `json:"character"`
}

func (s *Server) handleKanjiDetails(ctx context.Context, args json.RawMessage) (*ToolResult, error) {
	var in detailArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: expected {\"character\": string}")
	}

	character, err := japanese.ValidateKanjiCharacter(in.Character)
	if err != nil {
		return nil, err
	}

	detail, err := s.api.KanjiDetail(ctx, character)
	if err != nil {
		return nil, err
	}

	res := TextResult(render.KanjiDetail(detail))
	res.StructuredContent = detail
	return res, nil
}
