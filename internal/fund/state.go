package fund

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"HorizonTrader/internal/fsutil"
	"HorizonTrader/internal/model"
)

// LoadState reads the paper account from a JSON file. Returns nil if the file doesn't exist.
func LoadState(filePath string) (*model.PaperState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state model.PaperState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode paper account %s: %w", filePath, err)
	}
	if state.Holdings == nil {
		state.Holdings = map[string]model.PaperHolding{}
	}
	return &state, nil
}

// SaveState writes the paper account atomically.
func SaveState(filePath string, state *model.PaperState) error {
	state.UpdatedAt = model.At(time.Now())
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filePath, data, 0o644)
}
