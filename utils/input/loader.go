// Package input turns response files into the ordered response items a
// session summarizes.
package input

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/fileutil"
	"github.com/kris-hansen/summaprompt/utils/session"
)

var (
	// ErrNoResponses is returned when a file holds no usable response text
	ErrNoResponses = errors.New("no responses found")
	// ErrColumnRequired is returned when a CSV file has no obvious text column
	ErrColumnRequired = errors.New("text column must be specified")
)

// Field names searched, in order, when records are objects or CSV rows
var (
	textKeys         = []string{"text", "response", "comment", "feedback", "answer", "content"}
	identifierKeys   = []string{"identifier", "id", "response_id"}
	conversationKeys = []string{"conversation_id", "conversation"}
	roleKeys         = []string{"speaker_role", "role", "speaker"}
	wrapperKeys      = []string{"responses", "data", "items"}
)

var naValues = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"nan":  true,
	"-":    true,
}

// IsNA reports whether s is a placeholder for a missing answer
func IsNA(s string) bool {
	return naValues[strings.ToLower(strings.TrimSpace(s))]
}

// Options adjust how a single file is read
type Options struct {
	// Column names the field holding response text. Empty picks the first
	// of the usual names.
	Column string
	// IDColumn names the field holding the response identifier
	IDColumn string
}

// Result is the outcome of loading one file
type Result struct {
	Source  string                 `json:"source"`
	Format  Format                 `json:"format"`
	Column  string                 `json:"column,omitempty"`
	Total   int                    `json:"total"`
	Dropped int                    `json:"dropped"`
	Sampled bool                   `json:"sampled"`
	Items   []session.ResponseItem `json:"items"`
}

// Loader reads response files
type Loader struct {
	validator *Validator
	cfg       config.InputConfig
}

// NewLoader creates a loader that caps and samples items per cfg
func NewLoader(cfg config.InputConfig) *Loader {
	if cfg.SampleSeed == 0 {
		cfg.SampleSeed = config.DefaultSampleSeed
	}
	return &Loader{validator: NewValidator(nil), cfg: cfg}
}

// LoadFile reads the response file at path
func (l *Loader) LoadFile(path string, opts Options) (*Result, error) {
	if err := l.validator.ValidatePath(path); err != nil {
		return nil, err
	}
	if err := l.validator.ValidateFileExtension(path); err != nil {
		return nil, err
	}
	data, err := fileutil.SafeReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.Load(path, data, opts)
}

// Load parses data as the format implied by name's extension
func (l *Loader) Load(name string, data []byte, opts Options) (*Result, error) {
	format, err := l.validator.FormatOf(name)
	if err != nil {
		return nil, err
	}
	config.DebugLog("[Input] Loading %s as %s (%d bytes)", filepath.Base(name), format, len(data))

	res := &Result{Source: name, Format: format}
	var raw []session.ResponseItem
	switch format {
	case FormatJSON:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing JSON: %w", err)
		}
		raw, err = fromDocument(doc, opts)
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
		raw, err = fromDocument(doc, opts)
	case FormatCSV:
		raw, res.Column, err = fromCSV(data, opts)
	default:
		raw = fromLines(data)
	}
	if err != nil {
		return nil, err
	}

	res.Total = len(raw)
	items := make([]session.ResponseItem, 0, len(raw))
	for i, item := range raw {
		if IsNA(item.Text) {
			continue
		}
		item.Text = strings.TrimSpace(item.Text)
		if item.Identifier == "" {
			item.Identifier = strconv.Itoa(i)
		}
		items = append(items, item)
	}
	res.Dropped = res.Total - len(items)
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), ErrNoResponses)
	}

	if l.cfg.MaxItems > 0 && len(items) > l.cfg.MaxItems {
		items = Sample(items, l.cfg.MaxItems, l.cfg.SampleSeed)
		res.Sampled = true
	}
	res.Items = items
	config.VerboseLog("[Input] %s: %d responses kept (%d dropped, sampled=%v)", filepath.Base(name), len(items), res.Dropped, res.Sampled)
	return res, nil
}

// Sample picks n items using a fixed seed so the same file always yields
// the same subset. Source order is preserved.
func Sample[T any](items []T, n int, seed int64) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	picked := rand.New(rand.NewSource(seed)).Perm(len(items))[:n]
	sort.Ints(picked)
	out := make([]T, n)
	for i, idx := range picked {
		out[i] = items[idx]
	}
	return out
}

func fromDocument(doc any, opts Options) ([]session.ResponseItem, error) {
	if m, ok := doc.(map[string]any); ok {
		for _, key := range wrapperKeys {
			if inner, ok := m[key]; ok {
				return fromDocument(inner, opts)
			}
		}
		return nil, fmt.Errorf("expected a list of responses or an object with a %q list", "responses")
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of responses, got %T", doc)
	}

	items := make([]session.ResponseItem, 0, len(list))
	for i, entry := range list {
		switch v := entry.(type) {
		case map[string]any:
			fields := make(map[string]string, len(v))
			for k, val := range v {
				fields[strings.ToLower(k)] = scalar(val)
			}
			item, found := fromFields(fields, opts)
			if !found {
				return nil, fmt.Errorf("response %d has no text field (looked for %s)", i, strings.Join(lookupKeys(opts.Column, textKeys), ", "))
			}
			items = append(items, item)
		case nil:
			items = append(items, session.ResponseItem{})
		default:
			items = append(items, session.ResponseItem{Text: scalar(v)})
		}
	}
	return items, nil
}

func fromCSV(data []byte, opts Options) ([]session.ResponseItem, string, error) {
	header, rows, err := readCSV(data)
	if err != nil {
		return nil, "", err
	}
	column, err := pickColumn(header, opts.Column)
	if err != nil {
		return nil, "", err
	}
	opts.Column = column

	items := make([]session.ResponseItem, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		item, _ := fromFields(fields, opts)
		items = append(items, item)
	}
	return items, column, nil
}

// Columns lists the header of a CSV file so callers can choose a column
func Columns(data []byte) ([]string, error) {
	header, _, err := readCSV(data)
	return header, err
}

func readCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, ErrNoResponses
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return header, rows, nil
}

func pickColumn(header []string, want string) (string, error) {
	if want != "" {
		want = strings.ToLower(strings.TrimSpace(want))
		for _, h := range header {
			if h == want {
				return h, nil
			}
		}
		return "", fmt.Errorf("column %q not found (have %s)", want, strings.Join(header, ", "))
	}
	for _, key := range textKeys {
		for _, h := range header {
			if h == key {
				return h, nil
			}
		}
	}
	if len(header) == 1 {
		return header[0], nil
	}
	return "", fmt.Errorf("%w: columns are %s", ErrColumnRequired, strings.Join(header, ", "))
}

// fromFields builds an item from lower-cased field names. It reports
// whether a text field was present.
func fromFields(fields map[string]string, opts Options) (session.ResponseItem, bool) {
	text, found := first(fields, lookupKeys(opts.Column, textKeys))
	id, _ := first(fields, lookupKeys(opts.IDColumn, identifierKeys))
	conv, _ := first(fields, conversationKeys)
	role, _ := first(fields, roleKeys)
	return session.ResponseItem{
		Identifier:     strings.TrimSpace(id),
		Text:           text,
		ConversationID: strings.TrimSpace(conv),
		SpeakerRole:    strings.TrimSpace(role),
	}, found
}

func lookupKeys(preferred string, defaults []string) []string {
	if preferred != "" {
		return []string{strings.ToLower(preferred)}
	}
	return defaults
}

func first(fields map[string]string, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return "", false
}

func fromLines(data []byte) []session.ResponseItem {
	var items []session.ResponseItem
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, session.ResponseItem{Text: line})
	}
	return items
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
