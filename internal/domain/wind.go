package domain

import (
	"math"
	"time"
)

const (
	maxWindSpeedMS = 100.0
	knotsToMS      = 0.514444
)

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// BearingToDirection names the 16-point compass sector containing bearing
// (degrees clockwise from north). Each sector spans 22.5° centered on its point.
func BearingToDirection(bearing float64) string {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return compassPoints[int(math.Floor((b+11.25)/22.5))%16]
}

// normalizeBearing folds a negative bearing into [0, 360).
func normalizeBearing(b float64) float64 {
	if b < 0 {
		b += 360
	}
	return b
}

type windVector struct {
	ts   time.Time
	x, y float64
}

func newWindVector(speed, bearing float64, ts time.Time) windVector {
	rad := bearing * math.Pi / 180
	return windVector{ts: ts, x: speed * math.Sin(rad), y: speed * math.Cos(rad)}
}

// windState pairs separately reported speeds and bearings by timestamp. A
// vector is formed once both halves of a timestamp are known.
type windState struct {
	vectors []windVector
	paired  map[int64]bool
	speeds  map[int64]float64
	bearing map[int64]float64
}

func newWindState() *windState {
	return &windState{
		paired:  make(map[int64]bool),
		speeds:  make(map[int64]float64),
		bearing: make(map[int64]float64),
	}
}

func (w *windState) add(speed, bearing float64, ts time.Time) {
	key := ts.UnixNano()
	w.vectors = append(w.vectors, newWindVector(speed, bearing, ts))
	w.paired[key] = true
	delete(w.speeds, key)
	delete(w.bearing, key)
}

func (w *windState) addSpeed(speed float64, ts time.Time) {
	key := ts.UnixNano()
	if w.paired[key] {
		return
	}
	if b, ok := w.bearing[key]; ok {
		w.add(speed, b, ts)
		return
	}
	w.speeds[key] = speed
}

func (w *windState) addBearing(bearing float64, ts time.Time) {
	key := ts.UnixNano()
	if w.paired[key] {
		return
	}
	if sp, ok := w.speeds[key]; ok {
		w.add(sp, bearing, ts)
		return
	}
	w.bearing[key] = bearing
}

func (w *windState) times() []time.Time {
	out := make([]time.Time, len(w.vectors))
	for i, v := range w.vectors {
		out[i] = v.ts
	}
	return out
}

// vectorMean returns the mean wind vector's speed and bearing in [0, 360).
func (w *windState) vectorMean() (speed, bearing float64, ok bool) {
	if len(w.vectors) == 0 {
		return 0, 0, false
	}
	var x, y float64
	for _, v := range w.vectors {
		x += v.x
		y += v.y
	}
	n := float64(len(w.vectors))
	speed = math.Hypot(x, y) / n
	bearing = normalizeBearing(math.Atan2(x, y) * 180 / math.Pi)
	return speed, bearing, true
}

// WindSpeedSummary is the vector-mean speed in m/s.
type WindSpeedSummary struct {
	VectorMean *float64 `json:"vector_mean"`
	Count      int      `json:"count"`
}

// WindBearingSummary is the vector-mean bearing and its compass point.
type WindBearingSummary struct {
	VectorMean   *float64 `json:"vector_mean"`
	VectorString *string  `json:"vector_string"`
	Count        int      `json:"count"`
}

// WindSummary is the wind block of a StationSummary. Counts are paired vectors.
type WindSummary struct {
	Speed   WindSpeedSummary   `json:"speed"`
	Bearing WindBearingSummary `json:"bearing"`
}

func (w *windState) summary(precision int) WindSummary {
	n := len(w.vectors)
	out := WindSummary{
		Speed:   WindSpeedSummary{Count: n},
		Bearing: WindBearingSummary{Count: n},
	}
	speed, bearing, ok := w.vectorMean()
	if !ok {
		return out
	}
	dir := BearingToDirection(bearing)
	out.Speed.VectorMean = float64Ptr(roundTo(speed, precision))
	out.Bearing.VectorMean = float64Ptr(roundTo(bearing, precision))
	out.Bearing.VectorString = &dir
	return out
}
