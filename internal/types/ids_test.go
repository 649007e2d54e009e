// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	if id == "" {
		t.Error("expected non-empty ConversationID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
	if !id.Valid() {
		t.Errorf("expected %s to be valid", id)
	}
}

func TestConversationIDsDistinct(t *testing.T) {
	seen := make(map[ConversationID]bool)
	for i := 0; i < 100; i++ {
		id := NewConversationID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestConversationIDValid(t *testing.T) {
	if ConversationID("not-a-uuid").Valid() {
		t.Error("expected garbage id to be invalid")
	}
	if ConversationID("").Valid() {
		t.Error("expected empty id to be invalid")
	}
}
