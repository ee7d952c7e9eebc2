package model

import "encoding/json"

// WorkflowRecord is the journal entry for one workflow attempt.
type WorkflowRecord struct {
	ID          string         `json:"id"`
	Workflow    string         `json:"workflow"`
	Signer      string         `json:"signer"`
	Digest      string         `json:"digest,omitempty"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Commands    int            `json:"commands"`
	Created     []ObjectChange `json:"created,omitempty"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at"`
}

// MarshalJSON ensures WorkflowRecord is encoded with stable field names.
func (r WorkflowRecord) MarshalJSON() ([]byte, error) {
	type Alias WorkflowRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes a WorkflowRecord from JSON.
func (r *WorkflowRecord) UnmarshalJSON(data []byte) error {
	type Alias WorkflowRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = WorkflowRecord(a)
	return nil
}
