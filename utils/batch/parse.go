package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/llmjson"
)

// Record is one summary returned by the model
type Record struct {
	Index   int
	Summary string
	Type    string
	Raw     string
}

// index accepts 3 and "3"
type index struct {
	n     int
	valid bool
}

func (i *index) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	i.n, i.valid = n, true
	return nil
}

type wireRecord struct {
	Index       index  `json:"index"`
	Summary     string `json:"summary"`
	Type        string `json:"type"`
	SummaryType string `json:"summary_type"`
}

func (w wireRecord) typeLabel() string {
	if w.Type != "" {
		return w.Type
	}
	return w.SummaryType
}

// wrapperKeys are fields some models nest the result list under
var wrapperKeys = []string{"results", "summaries", "items", "responses"}

// ParseResponse extracts records for indices in [start, end) from model
// output. It accepts a JSON array of {index, summary, type} records or an
// object keyed by index whose values are records or bare summary strings.
// Records outside the range are ignored; for duplicate indices the first wins.
func ParseResponse(text string, start, end int) (map[int]Record, error) {
	raw, err := llmjson.Find(text, llmjson.Any)
	if err != nil {
		return nil, err
	}
	out := map[int]Record{}
	if err := collect(raw, start, end, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(raw json.RawMessage, start, end int, out map[int]Record) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New("empty payload")
	}

	keep := func(r Record) {
		if r.Index < start || r.Index >= end {
			return
		}
		if _, dup := out[r.Index]; dup {
			return
		}
		out[r.Index] = r
	}

	if raw[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return fmt.Errorf("decode record list: %w", err)
		}
		for _, elem := range elems {
			var w wireRecord
			if err := json.Unmarshal(elem, &w); err != nil || !w.Index.valid {
				continue
			}
			keep(Record{Index: w.Index.n, Summary: strings.TrimSpace(w.Summary), Type: strings.TrimSpace(w.typeLabel()), Raw: string(elem)})
		}
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode record object: %w", err)
	}
	for _, key := range wrapperKeys {
		if inner, ok := fields[key]; ok {
			return collect(inner, start, end, out)
		}
	}

	// Keys are visited in index order so "first wins" is deterministic for
	// keys like "1" and "01" that name the same item.
	type keyed struct {
		idx int
		key string
	}
	var keys []keyed
	for key := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			continue
		}
		keys = append(keys, keyed{idx: n, key: key})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].idx != keys[j].idx {
			return keys[i].idx < keys[j].idx
		}
		return keys[i].key < keys[j].key
	})

	for _, k := range keys {
		value := bytes.TrimSpace(fields[k.key])
		r := Record{Index: k.idx, Raw: string(value)}
		switch {
		case len(value) > 0 && value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				continue
			}
			r.Summary = strings.TrimSpace(s)
		case len(value) > 0 && value[0] == '{':
			var w wireRecord
			if err := json.Unmarshal(value, &w); err != nil {
				continue
			}
			r.Summary = strings.TrimSpace(w.Summary)
			r.Type = strings.TrimSpace(w.typeLabel())
		default:
			continue
		}
		keep(r)
	}
	return nil
}
