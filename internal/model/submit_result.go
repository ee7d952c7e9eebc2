package model

// Execution status values reported by the ledger.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// SubmitResult is the outcome of one atomic submission.
type SubmitResult struct {
	Digest        string         `json:"digest"`
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
	ObjectChanges []ObjectChange `json:"object_changes,omitempty"`
}

// Succeeded reports whether the unit committed.
func (r SubmitResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Created returns the created-object changes.
func (r SubmitResult) Created() []ObjectChange {
	out := make([]ObjectChange, 0, len(r.ObjectChanges))
	for _, change := range r.ObjectChanges {
		if change.Type == ChangeCreated {
			out = append(out, change)
		}
	}
	return out
}

// ReturnValue is a BCS-encoded value returned by an inspected call.
type ReturnValue struct {
	Bytes []byte `json:"bytes"`
	Type  string `json:"type"`
}

// CallResult holds the return values of one inspected command.
type CallResult struct {
	ReturnValues []ReturnValue `json:"return_values"`
}
