package storage

import (
	"encoding/json"
	"testing"
)

func TestMigrateStateCurrentVersionPassesThrough(t *testing.T) {
	in := []byte(`{"room_id":"r1"}`)
	out, err := MigrateState(CurrentSchemaVersion, in)
	if err != nil {
		t.Fatalf("MigrateState: %v", err)
	}
	if string(out) != string(in) {
		t.Error("current-version state should not be rewritten")
	}
}

func TestMigrateStateUnknownVersionFails(t *testing.T) {
	if _, err := MigrateState(99, []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown schema version")
	}
}

func TestMigrateLegacySingleModel(t *testing.T) {
	legacy := []byte(`{
		"room_id": "r1",
		"models": {
			"red_spymaster": {"model": "gpt-4o", "reasoning_effort": "high"},
			"red_guesser": "gpt-4o-mini",
			"blue_spymaster": [{"model": "claude-3-5-sonnet"}]
		}
	}`)

	out, err := MigrateState(1, legacy)
	if err != nil {
		t.Fatalf("MigrateState: %v", err)
	}

	var doc struct {
		RoomID string `json:"room_id"`
		Models map[string][]struct {
			Model           string `json:"model"`
			ReasoningEffort string `json:"reasoning_effort"`
		} `json:"models"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("upgraded state does not parse: %v", err)
	}

	if doc.RoomID != "r1" {
		t.Error("unrelated fields should survive migration")
	}
	if got := doc.Models["red_spymaster"]; len(got) != 1 || got[0].Model != "gpt-4o" || got[0].ReasoningEffort != "high" {
		t.Errorf("object entry not wrapped: %+v", got)
	}
	if got := doc.Models["red_guesser"]; len(got) != 1 || got[0].Model != "gpt-4o-mini" {
		t.Errorf("bare string entry not wrapped: %+v", got)
	}
	if got := doc.Models["blue_spymaster"]; len(got) != 1 || got[0].Model != "claude-3-5-sonnet" {
		t.Errorf("already-list entry mangled: %+v", got)
	}
}

func TestMigrateLegacyWithoutModels(t *testing.T) {
	legacy := []byte(`{"room_id":"r2","phase":"setup"}`)
	out, err := MigrateState(1, legacy)
	if err != nil {
		t.Fatalf("MigrateState: %v", err)
	}
	if string(out) != string(legacy) {
		t.Error("state without models should pass through unchanged")
	}
}
