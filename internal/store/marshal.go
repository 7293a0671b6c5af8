package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/invprop/internal/alignprop"
	"github.com/roach88/invprop/internal/ir"
)

// marshalNames converts a name list to canonical JSON TEXT for storage.
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

// unmarshalNames parses a JSON name list. Empty lists come back as empty
// slices, not nil.
func unmarshalNames(data string) ([]string, error) {
	names := []string{}
	if data == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return names, nil
}

// marshalStats converts pass counters to canonical JSON TEXT. Keys follow the
// json tags of alignprop.Stats.
func marshalStats(st alignprop.Stats) (string, error) {
	data, err := ir.MarshalCanonical(map[string]any{
		"loads_changed":          st.LoadsChanged,
		"stores_changed":         st.StoresChanged,
		"mem_intrinsics_changed": st.MemIntrinsicsChanged,
		"facts_matched":          st.FactsMatched,
	})
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

func unmarshalStats(data string) (alignprop.Stats, error) {
	var st alignprop.Stats
	if data == "" {
		return st, nil
	}
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return alignprop.Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
