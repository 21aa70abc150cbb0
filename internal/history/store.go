// Package history persists completed compression runs and user preferences
// in a local sqlite database.
package history

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store handles run history and preferences persistence.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at dbPath and migrates the schema.
func Open(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Run{}, &UserPreferences{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// RecordRun stores one completed run.
func (s *Store) RecordRun(run Run) error {
	return s.db.Create(&run).Error
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetStats aggregates all recorded runs.
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats

	if err := s.db.Model(&Run{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}
	if stats.TotalRuns == 0 {
		return &stats, nil
	}

	row := s.db.Model(&Run{}).
		Select("COALESCE(SUM(saved_bytes),0), COALESCE(SUM(original_size),0), COALESCE(SUM(compressed_size),0)").
		Row()
	if err := row.Scan(&stats.TotalDataSaved, &stats.TotalOriginal, &stats.TotalCompressed); err != nil {
		return nil, err
	}

	return &stats, nil
}

// GetPreferences gets the current user preferences
func (s *Store) GetPreferences() (*UserPreferencesData, error) {
	prefs, err := s.getOrCreatePreferences()
	if err != nil {
		return nil, err
	}

	prefsData := prefs.GetPreferences()
	return &prefsData, nil
}

// UpdatePreferences updates user preferences
func (s *Store) UpdatePreferences(data UserPreferencesData) error {
	prefs, err := s.getOrCreatePreferences()
	if err != nil {
		return err
	}

	if err := prefs.SetPreferences(data); err != nil {
		return err
	}

	return s.db.Save(prefs).Error
}

// getOrCreatePreferences gets existing preferences or creates default ones
func (s *Store) getOrCreatePreferences() (*UserPreferences, error) {
	var prefs UserPreferences

	// There is a single preferences row with ID = 1.
	result := s.db.First(&prefs, 1)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			prefs = UserPreferences{ID: 1}

			if err := prefs.SetPreferences(DefaultPreferences()); err != nil {
				return nil, err
			}

			if err := s.db.Create(&prefs).Error; err != nil {
				return nil, err
			}
		} else {
			return nil, result.Error
		}
	}

	return &prefs, nil
}
