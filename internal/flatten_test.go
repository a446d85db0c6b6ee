package internal

import "testing"

// TestFlattenIssuePayload tests that nested objects and label arrays are reachable by dotted keys.
func TestFlattenIssuePayload(t *testing.T) {
	input := map[string]interface{}{
		"action": "labeled",
		"issue": map[string]interface{}{
			"number": float64(7),
			"labels": []interface{}{
				map[string]interface{}{"name": "bug"},
				map[string]interface{}{"name": "ui"},
			},
		},
		"repository": map[string]interface{}{
			"owner": map[string]interface{}{"login": "octo"},
		},
	}

	flat := Flatten(input)
	if flat["action"] != "labeled" {
		t.Fatalf("expected action to be kept, got %v", flat["action"])
	}
	if flat["repository.owner.login"] != "octo" {
		t.Fatalf("expected repository.owner.login to be octo, got %v", flat["repository.owner.login"])
	}
	labels, ok := flat["issue.labels"].([]interface{})
	if !ok || len(labels) != 2 {
		t.Fatalf("expected issue.labels to hold both labels, got %v", flat["issue.labels"])
	}
	if flat["issue.labels[1].name"] != "ui" {
		t.Fatalf("expected issue.labels[1].name to be ui, got %v", flat["issue.labels[1].name"])
	}
	if _, ok := flat["issue"]; ok {
		t.Fatalf("expected intermediate objects to be dropped")
	}
}

// TestNewEventExtractsSummary tests that NewEvent fills the action, repository and sender.
func TestNewEventExtractsSummary(t *testing.T) {
	payload := []byte(`{"action":"opened","repository":{"full_name":"octo/hello"},"sender":{"login":"mona","id":583231}}`)

	event, err := NewEvent("issues", "delivery-1", payload)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if event.Action != "opened" || event.Repository != "octo/hello" || event.Sender != "mona" || event.SenderID != 583231 {
		t.Fatalf("unexpected summary: %+v", event)
	}
	if event.Provider != "github" || event.Delivery != "delivery-1" {
		t.Fatalf("unexpected provider or delivery: %+v", event)
	}
	if event.RawObject == nil {
		t.Fatalf("expected raw object to be kept")
	}
}

// TestNewEventRejectsInvalidJSON tests that a malformed payload is reported.
func TestNewEventRejectsInvalidJSON(t *testing.T) {
	if _, err := NewEvent("push", "", []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
