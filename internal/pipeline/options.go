package pipeline

// Level selects the quality/DPI tradeoff for a run.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very High"
)

// levelParams is the fixed level-to-parameter table. Low keeps the most
// quality; Very High compresses hardest.
var levelParams = map[Level]struct {
	Quality int
	DPI     int
}{
	LevelLow:      {Quality: 90, DPI: 300},
	LevelMedium:   {Quality: 75, DPI: 200},
	LevelHigh:     {Quality: 50, DPI: 150},
	LevelVeryHigh: {Quality: 30, DPI: 100},
}

// Params returns the encode quality and render DPI for the level.
func (l Level) Params() (quality, dpi int, ok bool) {
	p, ok := levelParams[l]
	return p.Quality, p.DPI, ok
}

// Options holds the per-run compression options. They are immutable for the
// duration of a run.
type Options struct {
	Level           Level
	RemoveMetadata  bool
	DownscaleImages bool
}
