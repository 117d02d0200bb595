// Package weather generates clear sky irradiance series for sites that lack
// measured data.
package weather

import (
	"math"
	"time"

	"github.com/ohowland/cgc_plan/internal/pkg/timeseries"
)

// IrradiationColumn is the series name the reference system reads.
const IrradiationColumn = "Sol_irradiation [Wh/sqm]"

const degToRad = math.Pi / 180

// Site is a collector location. Angles are in degrees, elevation in km.
type Site struct {
	Latitude  float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Elevation float64 `yaml:"elevation" validate:"gte=0"`
	Tilt      float64 `yaml:"tilt" validate:"gte=0,lte=90"`
}

// Radiation in W/m^2.
type Radiation struct {
	Direct  float64
	Diffuse float64
}

// TotalIrradiance is the clear sky irradiance on the collector at t in W/m^2.
func (s Site) TotalIrradiance(t time.Time) float64 {
	rad := s.intensity(t)
	angle := s.incidentAngle(t)
	if angle > math.Pi/2 {
		return rad.Diffuse
	}
	return rad.Direct*math.Cos(angle) + rad.Diffuse
}

// Irradiation returns the energy per step and square metre in Wh/m^2 for
// every step of index, sampled at the middle of the step.
func (s Site) Irradiation(index timeseries.Index) []float64 {
	hours := index.Step.Hours()
	out := make([]float64, index.Len)
	for i := range out {
		mid := index.At(i).Add(index.Step / 2)
		out[i] = s.TotalIrradiance(mid) * hours
	}
	return out
}

// Fill adds the irradiation column to frame unless it is already present.
func (s Site) Fill(frame *timeseries.Frame) error {
	if frame.Has(IrradiationColumn) {
		return nil
	}
	return frame.Add(IrradiationColumn, s.Irradiation(frame.Index()))
}

func (s Site) latitude() float64 {
	return s.Latitude * degToRad
}

func (s Site) intensity(t time.Time) Radiation {
	if !s.isDaytime(t) {
		return Radiation{}
	}
	x1 := math.Pow(0.7, math.Pow(s.airMass(t), 0.678))
	x2 := s.Elevation * 0.14
	direct := (x1*(1-x2) + x2) * 1353
	return Radiation{direct, direct * 0.1}
}

func (s Site) incidentAngle(t time.Time) float64 {
	d := declinationAngle(t)
	lat := s.latitude() - s.Tilt*degToRad
	return math.Acos(math.Cos(hourAngle(t))*math.Cos(d)*math.Cos(lat) + math.Sin(d)*math.Sin(lat))
}

func (s Site) airMass(t time.Time) float64 {
	return 1 / math.Cos(math.Pi/2-s.elevationAngle(t))
}

func (s Site) elevationAngle(t time.Time) float64 {
	d := declinationAngle(t)
	lat := s.latitude()
	angle := math.Asin(math.Sin(d)*math.Sin(lat) + math.Cos(d)*math.Cos(lat)*math.Cos(hourAngle(t)))
	if angle < 0 {
		return 0
	}
	return angle
}

func hourAngle(t time.Time) float64 {
	hourOfDay := float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 3600
	return (hourOfDay - 12) * 15 * degToRad
}

func (s Site) isDaytime(t time.Time) bool {
	return t.After(s.sunrise(t)) && t.Before(s.sunset(t))
}

// halfDay is the hours between sunrise and solar noon. Polar day and night
// clamp to 12 and 0.
func (s Site) halfDay(t time.Time) float64 {
	d := declinationAngle(t)
	lat := s.latitude()
	cos := -math.Tan(d) * math.Tan(lat)
	switch {
	case cos <= -1:
		return 12
	case cos >= 1:
		return 0
	}
	return math.Acos(cos) / degToRad / 15
}

func (s Site) sunrise(t time.Time) time.Time {
	return clock(t, 12-s.halfDay(t))
}

func (s Site) sunset(t time.Time) time.Time {
	return clock(t, 12+s.halfDay(t))
}

func clock(t time.Time, hours float64) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.Add(time.Duration(hours * float64(time.Hour)))
}

func declinationAngle(t time.Time) float64 {
	x1 := math.Sin(((float64(t.YearDay()) - 81) * 2 * math.Pi) / 365.25)
	return math.Asin(x1 * math.Sin(0.40928))
}
