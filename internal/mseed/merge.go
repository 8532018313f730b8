package mseed

import (
	"math"
	"sort"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

// gapTolerance is how far, in sample periods, a record may start from the
// expected next sample time and still be joined to the previous one.
const gapTolerance = 1.5

// Merge joins records into continuous waveforms per channel. A new segment
// starts on a gap, an overlap, or a sample rate change. Records that exactly
// duplicate an earlier one are dropped.
func Merge(records []Record) []models.Waveform {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].SeedID.String(), sorted[j].SeedID.String()
		if a != b {
			return a < b
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var (
		out     []models.Waveform
		cur     *models.Waveform
		lastRec Record
	)
	for _, rec := range sorted {
		if len(rec.Samples) == 0 || rec.SampleRate <= 0 {
			continue
		}
		if cur != nil && cur.SeedID == rec.SeedID && rec.StartTime.Equal(lastRec.StartTime) && len(rec.Samples) == len(lastRec.Samples) {
			continue
		}
		if cur != nil && cur.SeedID == rec.SeedID && contiguous(*cur, rec) {
			cur.Samples = append(cur.Samples, rec.Samples...)
			lastRec = rec
			continue
		}

		out = append(out, models.Waveform{
			SeedID:     rec.SeedID,
			StartTime:  rec.StartTime,
			SampleRate: rec.SampleRate,
			Samples:    append([]float64(nil), rec.Samples...),
		})
		cur = &out[len(out)-1]
		lastRec = rec
	}
	return out
}

func contiguous(w models.Waveform, rec Record) bool {
	if math.Abs(w.SampleRate-rec.SampleRate) > 1e-6*w.SampleRate {
		return false
	}
	period := 1 / w.SampleRate
	expected := w.StartTime.Add(time.Duration(float64(len(w.Samples)) * period * float64(time.Second)))
	gap := rec.StartTime.Sub(expected).Seconds()
	return math.Abs(gap) <= gapTolerance*period
}
