package history

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestRecordAndRecentRuns(t *testing.T) {
	store := openTestStore(t)

	runs := []Run{
		{RunID: "a", InputPath: "a.pdf", Level: "Medium", OriginalSize: 1000, CompressedSize: 400, SavedBytes: 600, Ratio: 60},
		{RunID: "b", InputPath: "b.pdf", Level: "High", OriginalSize: 2000, CompressedSize: 500, SavedBytes: 1500, Ratio: 75},
	}
	for _, r := range runs {
		if err := store.RecordRun(r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	recent, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(recent))
	}
}

func TestGetStats(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalRuns != 0 {
		t.Errorf("Expected 0 runs initially, got %d", stats.TotalRuns)
	}

	store.RecordRun(Run{RunID: "a", OriginalSize: 1000, CompressedSize: 400, SavedBytes: 600})
	store.RecordRun(Run{RunID: "b", OriginalSize: 2000, CompressedSize: 500, SavedBytes: 1500})

	stats, err = store.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalRuns != 2 {
		t.Errorf("Expected 2 runs, got %d", stats.TotalRuns)
	}
	if stats.TotalDataSaved != 2100 {
		t.Errorf("Expected 2100 bytes saved, got %d", stats.TotalDataSaved)
	}
	if stats.TotalOriginal != 3000 {
		t.Errorf("Expected 3000 original bytes, got %d", stats.TotalOriginal)
	}
}

func TestGetPreferences_Defaults(t *testing.T) {
	store := openTestStore(t)

	prefs, err := store.GetPreferences()
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}

	expected := DefaultPreferences()
	if *prefs != expected {
		t.Errorf("Expected defaults %+v, got %+v", expected, *prefs)
	}
}

func TestUpdatePreferences_RoundTrip(t *testing.T) {
	store := openTestStore(t)

	updated := UserPreferencesData{
		DefaultCompressionLevel: "Very High",
		RemoveMetadata:          false,
		DownscaleImages:         false,
	}
	if err := store.UpdatePreferences(updated); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}

	prefs, err := store.GetPreferences()
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if *prefs != updated {
		t.Errorf("Expected %+v, got %+v", updated, *prefs)
	}
}

func TestUserPreferences_CorruptJSONFallsBack(t *testing.T) {
	up := UserPreferences{PreferencesJSON: "{not json"}

	prefs := up.GetPreferences()
	if prefs != DefaultPreferences() {
		t.Errorf("Expected defaults for corrupt JSON, got %+v", prefs)
	}
}
