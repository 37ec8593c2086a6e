package mastery

import (
	"math"

	"github.com/mathquest/backend/internal/profile"
)

const (
	// SmoothingWindow is the number of most recent latencies averaged.
	SmoothingWindow = 20
	// HistoryCap bounds the persisted latency history. Entries older than
	// the smoothing window are never read again, so the two are equal.
	HistoryCap = SmoothingWindow

	// outlierSigma is the trim threshold in population standard deviations.
	outlierSigma = 2.5
	// latencyCeilingMs caps samples in the degenerate fallback average.
	latencyCeilingMs = 45_000.0
	// minTrimSamples is the smallest window on which outliers are trimmed.
	minTrimSamples = 3
	// looMinSamples is the smallest window tested leave-one-out.
	looMinSamples = 5
)

// RecordAttempt returns stat updated with one answer. The input's latency
// history is never modified in place.
func RecordAttempt(stat profile.SkillStat, correct bool, latencyMs float64) profile.SkillStat {
	out := stat.Clone()
	out.Attempts++
	if correct {
		out.Correct++
	}
	out.LatencySumMs += latencyMs

	out.Recent = append(out.Recent, latencyMs)
	if n := len(out.Recent); n > HistoryCap {
		out.Recent = append([]float64(nil), out.Recent[n-HistoryCap:]...)
	}

	out.SmoothedAvgMs = SmoothedAverage(out.Recent)
	return out
}

// SmoothedAverage returns the outlier-trimmed mean of samples.
//
// Windows with fewer than three samples return the plain mean. Otherwise
// a sample is dropped when it lies more than 2.5 population standard
// deviations from the window mean. A single sample can never sit that far
// out on 3 or 4 samples, so those windows keep every sample. Windows of 5
// to 8 samples test each sample against the mean and deviation of the
// others instead, since a lone spike there inflates the full-window
// deviation enough to hide itself. If every sample is dropped the result
// is the mean with each sample capped at 45s.
func SmoothedAverage(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	if n < minTrimSamples {
		return mean(samples)
	}

	if avg, ok := trimmedMean(samples); ok {
		return avg
	}
	return cappedMean(samples)
}

// trimmedMean averages the samples that survive the outlier test. It
// reports false when none survive.
func trimmedMean(samples []float64) (float64, bool) {
	n := len(samples)
	sum, sumSq := 0.0, 0.0
	for _, x := range samples {
		sum += x
		sumSq += x * x
	}

	fullMean := sum / float64(n)
	fullSD := math.Sqrt(max(sumSq/float64(n)-fullMean*fullMean, 0))
	leaveOneOut := n >= looMinSamples && float64(n-1)/math.Sqrt(float64(n)) <= outlierSigma

	kept, keptSum := 0, 0.0
	for _, x := range samples {
		center, sd := fullMean, fullSD
		if leaveOneOut {
			m := float64(n - 1)
			center = (sum - x) / m
			sd = math.Sqrt(max((sumSq-x*x)/m-center*center, 0))
		}
		if math.Abs(x-center) > outlierSigma*sd {
			continue
		}
		kept++
		keptSum += x
	}
	if kept == 0 {
		return 0, false
	}
	return keptSum / float64(kept), true
}

// cappedMean is the mean of samples with each capped at latencyCeilingMs.
func cappedMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range samples {
		sum += min(x, latencyCeilingMs)
	}
	return sum / float64(len(samples))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
