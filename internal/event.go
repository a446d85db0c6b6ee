package internal

import (
	"encoding/json"
	"fmt"
)

// Event is an accepted GitHub delivery as seen by the rule engine and the
// audit publishers.
type Event struct {
	Provider   string                 `json:"provider"`
	Name       string                 `json:"name"`
	Delivery   string                 `json:"delivery,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Repository string                 `json:"repository,omitempty"`
	Sender     string                 `json:"sender,omitempty"`
	SenderID   int64                  `json:"sender_id,omitempty"`
	Data       map[string]interface{} `json:"data"`
	RawPayload []byte                 `json:"-"`
	RawObject  interface{}            `json:"-"`
}

// NewEvent decodes a GitHub payload once and keeps both the flattened view
// used by rules and the raw object used for JSONPath lookups.
func NewEvent(name, delivery string, payload []byte) (Event, error) {
	event := Event{Provider: "github", Name: name, Delivery: delivery, RawPayload: payload}
	var object interface{}
	if err := json.Unmarshal(payload, &object); err != nil {
		return event, fmt.Errorf("decode %s payload: %w", name, err)
	}
	event.RawObject = object

	root, ok := object.(map[string]interface{})
	if !ok {
		event.Data = map[string]interface{}{}
		return event, nil
	}
	event.Data = Flatten(root)
	event.Action, _ = event.Data["action"].(string)
	event.Repository, _ = event.Data["repository.full_name"].(string)
	event.Sender, _ = event.Data["sender.login"].(string)
	if id, ok := event.Data["sender.id"].(float64); ok {
		event.SenderID = int64(id)
	}
	return event, nil
}
