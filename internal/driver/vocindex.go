package driver

import "math"

// Gas index tuning. The raw SGP40 signal drops as VOC concentration rises,
// so a sample below the learned baseline maps above 100.
const (
	vocBlackoutSamples = 45
	vocInitialStd      = 50.0
	vocMinStd          = 10.0
	vocMeanTau         = 12 * 3600.0
	vocStdTau          = 24 * 3600.0
	vocGain            = 0.65
	vocMaxIndex        = 500.0
)

// VOCIndex maps raw SGP40 ticks to a 0 to 500 index where 100 is the
// learned average air quality. It adapts the baseline with exponential
// averages whose time constants assume one sample per second. The first
// samples only train the baseline and report 0.
type VOCIndex struct {
	samples  int
	mean     float64
	variance float64
}

// NewVOCIndex creates an untrained estimator.
func NewVOCIndex() *VOCIndex {
	return &VOCIndex{variance: vocInitialStd * vocInitialStd}
}

// Samples returns how many raw values have been processed.
func (v *VOCIndex) Samples() int { return v.samples }

// Process learns from raw and returns the index.
func (v *VOCIndex) Process(raw float64) float64 {
	v.samples++
	if v.samples == 1 {
		v.mean = raw
		return 0
	}

	// Fast adaptation while the history is shorter than the time constant.
	alphaMean := math.Max(1/float64(v.samples), 1/vocMeanTau)
	alphaStd := math.Max(1/float64(v.samples), 1/vocStdTau)

	std := math.Max(math.Sqrt(v.variance), vocMinStd)
	z := (v.mean - raw) / std

	dev := raw - v.mean
	v.mean += alphaMean * dev
	v.variance += alphaStd * (dev*dev - v.variance)

	if v.samples <= vocBlackoutSamples {
		return 0
	}
	return vocMaxIndex / (1 + 4*math.Exp(-vocGain*z))
}
