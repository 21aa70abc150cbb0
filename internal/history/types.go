package history

import (
	"encoding/json"
	"time"

	"pdfsqueeze/internal/common"
)

// Run is one completed compression run.
type Run struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          string    `json:"run_id"`
	InputPath      string    `json:"input_path"`
	OutputPath     string    `json:"output_path"`
	Level          string    `json:"level"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	SavedBytes     int64     `json:"saved_bytes"`
	Ratio          float64   `json:"ratio"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stats aggregates all recorded runs.
type Stats struct {
	TotalRuns       int64 `json:"total_runs"`
	TotalDataSaved  int64 `json:"total_data_saved"`
	TotalOriginal   int64 `json:"total_original"`
	TotalCompressed int64 `json:"total_compressed"`
}

// UserPreferences database model
type UserPreferences struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PreferencesJSON string    `gorm:"type:text" json:"preferences_json"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserPreferencesData represents user preferences data
type UserPreferencesData struct {
	DefaultCompressionLevel string `json:"default_compression_level"`
	RemoveMetadata          bool   `json:"remove_metadata"`
	DownscaleImages         bool   `json:"downscale_images"`
}

// DefaultPreferences returns default user preferences
func DefaultPreferences() UserPreferencesData {
	return UserPreferencesData{
		DefaultCompressionLevel: common.DefaultCompressionLevel,
		RemoveMetadata:          true,
		DownscaleImages:         true,
	}
}

// GetPreferences returns the user preferences data
func (up *UserPreferences) GetPreferences() UserPreferencesData {
	if up.PreferencesJSON == "" {
		return DefaultPreferences()
	}

	var prefs UserPreferencesData
	if err := json.Unmarshal([]byte(up.PreferencesJSON), &prefs); err != nil {
		return DefaultPreferences()
	}

	return prefs
}

// SetPreferences sets the user preferences data
func (up *UserPreferences) SetPreferences(prefs UserPreferencesData) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	up.PreferencesJSON = string(data)
	return nil
}
