package avatar3d

import (
	"math"
	"sync"
)

// FrequencyAnalyser is a live frequency-domain tap on the playing speech.
// Each call returns the current magnitude snapshot.
type FrequencyAnalyser interface {
	FrequencyMagnitudes() []byte
}

// LipSync derives the mouth-open weight from the audio amplitude envelope.
// It keeps no state between calls.
type LipSync struct {
	calibration float64
	exponent    float64
}

func NewLipSync(t Tuning) LipSync {
	return LipSync{
		calibration: t.LipSyncCalibration,
		exponent:    t.LipSyncExponent,
	}
}

// SampleMouthOpen reads one snapshot and maps its mean magnitude onto
// [0,1] through a super-linear response. It returns 0 without sampling
// when not speaking or when no analyser is attached.
func (l LipSync) SampleMouthOpen(speaking bool, analyser FrequencyAnalyser) float32 {
	if !speaking || analyser == nil {
		return 0
	}

	samples := analyser.FrequencyMagnitudes()
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))

	level := math.Pow(mean/l.calibration, l.exponent)
	if math.IsNaN(level) {
		return 0
	}
	return clamp(float32(level), 0, 1)
}

// SnapshotAnalyser is a FrequencyAnalyser fed from outside the frame loop,
// for playback boundaries that deliver magnitudes asynchronously.
type SnapshotAnalyser struct {
	mu      sync.RWMutex
	samples []byte
}

func NewSnapshotAnalyser(size int) *SnapshotAnalyser {
	return &SnapshotAnalyser{samples: make([]byte, size)}
}

// Update replaces the current snapshot with a copy of samples.
func (a *SnapshotAnalyser) Update(samples []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cap(a.samples) < len(samples) {
		a.samples = make([]byte, len(samples))
	}
	a.samples = a.samples[:len(samples)]
	copy(a.samples, samples)
}

func (a *SnapshotAnalyser) FrequencyMagnitudes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]byte, len(a.samples))
	copy(out, a.samples)
	return out
}
