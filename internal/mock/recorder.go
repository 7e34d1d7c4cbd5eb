package mock

import (
	"sync"

	"cross_arb/internal/core"
)

// Recorder implements core.TradeRecorder in memory.
type Recorder struct {
	mu       sync.Mutex
	fills    []core.FillRecord
	episodes []core.EpisodeRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordFill captures a fill row.
func (r *Recorder) RecordFill(rec core.FillRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, rec)
}

// RecordEpisode captures an episode row.
func (r *Recorder) RecordEpisode(rec core.EpisodeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes = append(r.episodes, rec)
}

// Fills returns a copy of the captured fills.
func (r *Recorder) Fills() []core.FillRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.FillRecord, len(r.fills))
	copy(out, r.fills)
	return out
}

// Episodes returns a copy of the captured episodes.
func (r *Recorder) Episodes() []core.EpisodeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EpisodeRecord, len(r.episodes))
	copy(out, r.episodes)
	return out
}
