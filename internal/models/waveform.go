package models

import "time"

// Waveform is one contiguous run of samples for a channel.
type Waveform struct {
	SeedID     SeedID
	StartTime  time.Time
	SampleRate float64
	Samples    []float64
}

// EndTime is the time of the last sample.
func (w *Waveform) EndTime() time.Time {
	if len(w.Samples) == 0 || w.SampleRate <= 0 {
		return w.StartTime
	}
	offset := float64(len(w.Samples)-1) / w.SampleRate
	return w.StartTime.Add(time.Duration(offset * float64(time.Second)))
}

// Times returns the offset in seconds of every sample from StartTime.
func (w *Waveform) Times() []float64 {
	times := make([]float64, len(w.Samples))
	if w.SampleRate <= 0 {
		return times
	}
	for i := range times {
		times[i] = float64(i) / w.SampleRate
	}
	return times
}

// StationWaveforms pairs a ranked station with the segments fetched for it.
type StationWaveforms struct {
	Station  Station
	Segments []Waveform
}
