package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/llmjson"
	"github.com/kris-hansen/summaprompt/utils/matcher"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// CatchAllKey is the summary type every generated set contains
const CatchAllKey = "general"

var catchAll = session.SummaryType{
	Key:         CatchAllKey,
	Name:        "General",
	Description: "Responses that do not clearly fit any other category",
}

// DefaultSummaryTypes is the deterministic set used when generation fails
func DefaultSummaryTypes() []session.SummaryType {
	return []session.SummaryType{
		{
			Key:         "themes",
			Name:        "Key Themes",
			Description: "The main topics or recurring ideas the respondent raises",
		},
		{
			Key:         "sentiment",
			Name:        "Sentiment",
			Description: "How the respondent feels overall: positive, negative, mixed or neutral",
		},
		{
			Key:         "specific_issues",
			Name:        "Specific Issues",
			Description: "Concrete problems, complaints or requests the respondent describes",
		},
		catchAll,
	}
}

const summaryTypesTemplate = `Based on the following criteria, generate 4 summary categories that would be most useful for organizing summaries of survey responses.

CRITERIA:
%s

Generate exactly 4 categories following this pattern:
1. A "themes" category for the recurring topics respondents raise
2. A "sentiment" category for how respondents feel
3. A "specific_issues" category for concrete problems or requests
4. A "general" catch-all category for responses that fit nothing else

For each category, provide:
- a snake_case key
- a clear, specific name (1-3 words)
- a description explaining which responses belong in it

Respond with JSON only, like this:
{
  "themes": {"name": "Battery Topics", "description": "Recurring points about battery life and charging"},
  "sentiment": {"name": "Battery Satisfaction", "description": "How satisfied the respondent is with battery performance"},
  "specific_issues": {"name": "Battery Problems", "description": "Concrete battery failures such as fast draining or slow charging"},
  "general": {"name": "Other Feedback", "description": "Responses unrelated to the battery or too vague to categorize"}
}

Tailor the categories to the criteria above.`

type typeRecord struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SummaryTypes asks the model for summary categories tailored to criteria.
// It never fails: unusable output yields DefaultSummaryTypes with Fallback set.
func (g *Generator) SummaryTypes(ctx context.Context, criteria string) Generated[[]session.SummaryType] {
	text, err := g.complete(ctx, "summary types", fmt.Sprintf(summaryTypesTemplate, strings.TrimSpace(criteria)))
	if err != nil {
		config.VerboseLog("[Generator] Using default summary types: %v", err)
		return fallback(DefaultSummaryTypes(), fmt.Errorf("%w: %w", ErrGenerationFailure, err))
	}

	types, err := ParseSummaryTypes(text)
	if err != nil {
		config.VerboseLog("[Generator] Using default summary types: %v", err)
		return fallback(DefaultSummaryTypes(), err)
	}
	return Generated[[]session.SummaryType]{Value: types}
}

// ParseSummaryTypes extracts summary types from model output. It accepts an
// object keyed by type key, an array of {key,name,description} records, or
// either of those under a "summary_types" or "types" field. Records without a
// name or description are dropped, keys are normalized to snake_case and
// duplicates are dropped. The catch-all type is appended when missing.
func ParseSummaryTypes(text string) ([]session.SummaryType, error) {
	raw, err := llmjson.Find(text, llmjson.Any)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	records, err := decodeTypeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	var types []session.SummaryType
	seen := map[string]bool{}
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		desc := strings.TrimSpace(r.Description)
		if name == "" || desc == "" {
			continue
		}
		key := matcher.Normalize(r.Key)
		if key == "" {
			key = matcher.Normalize(name)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		types = append(types, session.SummaryType{Key: key, Name: name, Description: desc})
	}

	if len(types) == 0 {
		return nil, fmt.Errorf("%w: no valid summary types in model output", ErrGenerationFailure)
	}
	if !seen[CatchAllKey] {
		types = append(types, catchAll)
	}
	return types, nil
}

func decodeTypeRecords(raw json.RawMessage) ([]typeRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []typeRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode summary type list: %w", err)
		}
		return records, nil
	}

	fields, err := orderedFields(trimmed)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.key == "summary_types" || f.key == "types" {
			return decodeTypeRecords(f.value)
		}
	}

	records := make([]typeRecord, 0, len(fields))
	for _, f := range fields {
		var r typeRecord
		if err := json.Unmarshal(f.value, &r); err != nil {
			continue
		}
		if r.Key == "" {
			r.Key = f.key
		}
		records = append(records, r)
	}
	return records, nil
}

type field struct {
	key   string
	value json.RawMessage
}

// orderedFields decodes a JSON object keeping the order of its members
func orderedFields(raw []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode summary types: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode summary types: expected object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode summary types: %w", err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode summary type %q: %w", key, err)
		}
		fields = append(fields, field{key: key, value: value})
	}
	return fields, nil
}
