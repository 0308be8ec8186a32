// Package aigen runs the schedule, knowledge and information views over one
// piece of content, either concurrently into a composite result or
// sequentially as a stream of envelopes.
package aigen

import "encoding/json"

// Type names the payload of an Envelope.
type Type string

const (
	TypeSchedule    Type = "schedule"
	TypeKnowledge   Type = "knowledge"
	TypeInformation Type = "information"
	TypeStatus      Type = "status"
)

type Status string

const (
	StatusStart    Status = "start"
	StatusProgress Status = "progress"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Envelope is one frame of a streamed extraction. An empty Message is
// encoded as null.
type Envelope struct {
	Type    Type   `json:"type"`
	Status  Status `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	var msg *string
	if e.Message != "" {
		msg = &e.Message
	}
	return json.Marshal(struct {
		Type    Type    `json:"type"`
		Status  Status  `json:"status"`
		Data    any     `json:"data"`
		Message *string `json:"message"`
	}{e.Type, e.Status, e.Data, msg})
}

func statusEnvelope(st Status, msg string) Envelope {
	return Envelope{
		Type:    TypeStatus,
		Status:  st,
		Data:    struct{}{},
		Message: msg,
	}
}
