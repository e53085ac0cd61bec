package storage

import (
	"encoding/json"
	"fmt"
)

// CurrentSchemaVersion is the state schema written by this build.
// Version 1 stored one model per seat as either a bare string or a
// single object; version 2 stores a list of model entries per seat.
const CurrentSchemaVersion = 2

// MigrateState upgrades a persisted state blob to the current schema.
// It is applied on load, never on save, so old rows are rewritten
// lazily the next time their room mutates.
func MigrateState(version int, state []byte) ([]byte, error) {
	switch version {
	case CurrentSchemaVersion:
		return state, nil
	case 1:
		return migrateModelsToLists(state)
	default:
		return nil, fmt.Errorf("unknown state schema version %d", version)
	}
}

// migrateModelsToLists rewrites the per-seat "models" map from one
// model per seat to a one-element list per seat.
func migrateModelsToLists(state []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(state, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse legacy state: %w", err)
	}

	rawModels, ok := doc["models"]
	if !ok || string(rawModels) == "null" {
		return state, nil
	}

	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(rawModels, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy models map: %w", err)
	}

	upgraded := make(map[string][]json.RawMessage, len(legacy))
	for seat, raw := range legacy {
		// Already a list: seat was written by a half-migrated build.
		if len(raw) > 0 && raw[0] == '[' {
			var entries []json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				return nil, fmt.Errorf("failed to parse model list for seat %s: %w", seat, err)
			}
			upgraded[seat] = entries
			continue
		}
		// Bare string: wrap into an entry object first.
		if len(raw) > 0 && raw[0] == '"' {
			var model string
			if err := json.Unmarshal(raw, &model); err != nil {
				return nil, fmt.Errorf("failed to parse model for seat %s: %w", seat, err)
			}
			entry, err := json.Marshal(map[string]string{"model": model})
			if err != nil {
				return nil, err
			}
			raw = entry
		}
		upgraded[seat] = []json.RawMessage{raw}
	}

	rewritten, err := json.Marshal(upgraded)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upgraded models: %w", err)
	}
	doc["models"] = rewritten

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upgraded state: %w", err)
	}
	return out, nil
}
