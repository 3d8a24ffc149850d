package ledger

import "strings"

// Contract is an active contract as reported by the ledger.
//
// The same shape describes a creation event on the stream, so it is also the
// event value handed to reactions.
type Contract struct {
	ContractID  string         `json:"contractId"`
	TemplateID  string         `json:"templateId"`
	Payload     map[string]any `json:"payload"`
	Signatories []string       `json:"signatories,omitempty"`
	Observers   []string       `json:"observers,omitempty"`
}

// Field returns the payload value stored under name.
func (c Contract) Field(name string) (any, bool) {
	if c.Payload == nil {
		return nil, false
	}
	value, ok := c.Payload[name]
	return value, ok
}

// ArchivedContract identifies a contract that left the active set.
type ArchivedContract struct {
	ContractID string `json:"contractId"`
	TemplateID string `json:"templateId"`
}

// Event is one element of a stream batch; exactly one field is set.
type Event struct {
	Created  *Contract         `json:"created,omitempty"`
	Archived *ArchivedContract `json:"archived,omitempty"`
}

// Batch is one message from the event stream.
type Batch struct {
	Events []Event
	// Offset is the ledger offset the batch brings the reader up to, when known.
	Offset string
	// Live is set on messages that carry an offset. The first such message
	// closes the initial active-contract snapshot.
	Live bool
}

// ExerciseResult is the ledger's answer to a committed exercise.
type ExerciseResult struct {
	ExerciseResult any     `json:"exerciseResult"`
	Events         []Event `json:"events"`
}

// TemplateName strips the package id from a fully qualified template id, so
// "5f1c...:Chess:Game" and "Chess:Game" compare equal.
func TemplateName(id string) string {
	id = strings.TrimSpace(id)
	parts := strings.Split(id, ":")
	if len(parts) == 3 {
		return parts[1] + ":" + parts[2]
	}
	return id
}
