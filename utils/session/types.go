package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is written into every persisted session
const SchemaVersion = 1

// Session is the persisted state of one wizard run. It is a plain value:
// operations load it, mutate their copy and save it back whole.
type Session struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	CurrentStep string          `json:"current_step"`
	Stale       map[string]bool `json:"stale,omitempty"`

	RawData             []ResponseItem `json:"raw_data"`
	DataSource          string         `json:"data_source,omitempty"`
	CriteriaDescription string         `json:"criteria_description"`
	SummaryTypes        []SummaryType  `json:"summary_types"`

	ActivePrompt     string              `json:"active_prompt"`
	PromptHistory    []PromptVersion     `json:"prompt_history"`
	PendingIteration *IterationCandidate `json:"pending_iteration,omitempty"`
	IterationCount   int                 `json:"iteration_count"`

	SelectedInferenceModel string            `json:"selected_inference_model"`
	InferenceResults       []InferenceResult `json:"inference_results"`
	InferenceReport        *RunReport        `json:"inference_report,omitempty"`
	FeedbackEntries        []FeedbackEntry   `json:"feedback_entries"`
	FinalResults           *FinalResults     `json:"final_results,omitempty"`

	GenerationNotes []GenerationNote `json:"generation_notes,omitempty"`
}

// ResponseItem is one survey response to summarize
type ResponseItem struct {
	Identifier     string `json:"identifier"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	SpeakerRole    string `json:"speaker_role,omitempty"`
}

// SummaryType is a category summaries are organized under
type SummaryType struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InferenceResult is the generated summary for the item at ItemIndex.
// MatchedTypeKey is nil when the model's type could not be matched.
// Error is non-empty when no usable summary was produced.
type InferenceResult struct {
	ItemIndex      int     `json:"item_index"`
	ItemID         string  `json:"item_id"`
	SummaryText    string  `json:"summary_text"`
	MatchedTypeKey *string `json:"matched_type_key"`
	RawModelOutput string  `json:"raw_model_output"`
	Error          string  `json:"error,omitempty"`
}

// Failed reports whether the result carries an error marker
func (r InferenceResult) Failed() bool {
	return r.Error != ""
}

// FeedbackEntry is a user correction of one inference result. A nil
// CorrectedSummary and CorrectedTypeKey means the original was confirmed.
type FeedbackEntry struct {
	ItemIndex        int     `json:"item_index"`
	OriginalSummary  string  `json:"original_summary"`
	CorrectedSummary *string `json:"corrected_summary"`
	CorrectedTypeKey *string `json:"corrected_type_key"`
	Note             string  `json:"note,omitempty"`
}

// IsCorrection reports whether the entry changes the summary or its type
func (f FeedbackEntry) IsCorrection() bool {
	return f.CorrectedSummary != nil || f.CorrectedTypeKey != nil
}

// PromptVersion is a prompt that was replaced by an approved iteration
type PromptVersion struct {
	Prompt        string    `json:"prompt"`
	ChangeSummary string    `json:"change_summary,omitempty"`
	Iteration     int       `json:"iteration"`
	ReplacedAt    time.Time `json:"replaced_at"`
}

// IterationCandidate is a revised prompt awaiting approval
type IterationCandidate struct {
	Prompt        string          `json:"prompt"`
	ChangeSummary string          `json:"change_summary"`
	Report        json.RawMessage `json:"report,omitempty"`
	Fallback      bool            `json:"fallback,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RunReport describes how the last batch run went
type RunReport struct {
	Model        string    `json:"model"`
	Batches      int       `json:"batches"`
	FailedCalls  int       `json:"failed_calls"`
	Missing      int       `json:"missing"`
	Errored      int       `json:"errored"`
	Unmatched    int       `json:"unmatched"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FailureNotes []string  `json:"failure_notes,omitempty"`
}

// FinalItem is one item of the merged, post-feedback result set
type FinalItem struct {
	ItemIndex       int     `json:"item_index"`
	ItemID          string  `json:"item_id"`
	Text            string  `json:"text"`
	Summary         string  `json:"summary"`
	TypeKey         *string `json:"type_key"`
	OriginalSummary string  `json:"original_summary"`
	OriginalTypeKey *string `json:"original_type_key"`
	Corrected       bool    `json:"corrected"`
	Note            string  `json:"note,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// TypeCount is the number of effective summaries under one type
type TypeCount struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// FinalResults aggregates inference results with user corrections applied
type FinalResults struct {
	Total      int            `json:"total"`
	Items      []FinalItem    `json:"items"`
	TypeCounts map[string]int `json:"type_counts"`
	Breakdown  []TypeCount    `json:"breakdown"`
	Unmatched  int            `json:"unmatched"`
	Errored    int            `json:"errored"`
	Corrected  int            `json:"corrected"`
}

// GenerationNote records that a generated artifact came from a fallback
type GenerationNote struct {
	Step     string    `json:"step"`
	Fallback bool      `json:"fallback"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// New returns an empty session positioned at the first step
func New(id, firstStep string, now time.Time) *Session {
	return &Session{
		ID:            id,
		SchemaVersion: SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		CurrentStep:   firstStep,
	}
}

// Clone returns a deep copy of s. Sessions never share slices or maps.
func (s *Session) Clone() (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone session: %w", err)
	}
	return Decode(data)
}

// Decode parses a persisted session record
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("decode session: schema version %d is newer than supported %d", s.SchemaVersion, SchemaVersion)
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	return &s, nil
}

// Encode serializes the session for storage
func Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// StringPtr returns a pointer to v
func StringPtr(v string) *string {
	return &v
}
