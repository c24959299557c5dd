package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type stateFile struct {
	PullbackState
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadState reads the strategy state from a JSON file. Returns an idle state for now if the file doesn't exist.
func LoadState(filePath string, now time.Time) (PullbackState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(now), nil
		}
		return PullbackState{}, err
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return PullbackState{}, err
	}
	return sf.PullbackState, nil
}

// SaveState writes the strategy state to a JSON file.
func SaveState(filePath string, st PullbackState) error {
	data, err := json.MarshalIndent(stateFile{PullbackState: st, UpdatedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
