// Package metrics keeps acquisition gauges and counters for one camera and
// writes them in the Prometheus text format, for the node_exporter textfile
// collector.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nasa-jpl/cameraunit/autoexp"
	"github.com/nasa-jpl/cameraunit/camera"
	"github.com/nasa-jpl/cameraunit/imagedata"
	"github.com/nasa-jpl/cameraunit/temperature"
)

// Namespace prefixes every metric name
const Namespace = "asicapture"

// Set is the metrics of one camera
type Set struct {
	reg *prometheus.Registry

	captures *prometheus.CounterVec
	exposure prometheus.Gauge
	bin      prometheus.Gauge
	level    prometheus.Gauge
	temp     prometheus.Gauge
	cooler   prometheus.Gauge
}

// New creates a set labelled with the camera name
func New(cameraName string) *Set {
	labels := prometheus.Labels{"camera": cameraName}
	s := &Set{
		reg: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "captures_total",
			Help:        "Captures attempted, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		exposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "exposure_seconds",
			Help:        "Exposure time of the last frame.",
			ConstLabels: labels,
		}),
		bin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "binning",
			Help:        "Binning of the last frame.",
			ConstLabels: labels,
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "percentile_level",
			Help:        "Pixel value in 16-bit ADU at the auto exposure percentile.",
			ConstLabels: labels,
		}),
		temp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "sensor_temp_celsius",
			Help:        "Sensor temperature.",
			ConstLabels: labels,
		}),
		cooler: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "cooler_power_percent",
			Help:        "Cooler power.",
			ConstLabels: labels,
		}),
	}
	s.reg.MustRegister(s.captures, s.exposure, s.bin, s.level, s.temp, s.cooler)
	return s
}

// Outcome is the label a capture result is counted under
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, camera.ErrCaptureTimedOut):
		return "timeout"
	case errors.Is(err, camera.ErrCancelled):
		return "cancelled"
	case errors.Is(err, camera.ErrExposureInProgress):
		return "busy"
	default:
		return "failed"
	}
}

// ObserveCapture counts a capture and, if it succeeded, records its settings
func (s *Set) ObserveCapture(img *imagedata.ImageData, err error) {
	s.captures.WithLabelValues(Outcome(err)).Inc()
	if err != nil || img == nil {
		return
	}
	s.exposure.Set(img.Meta.Exposure.Seconds())
	s.bin.Set(float64(img.Meta.BinX))
	if !img.Meta.Temperature.IsUnknown() {
		s.temp.Set(float64(img.Meta.Temperature))
	}
}

// ObserveExposure records the result of an auto exposure step
func (s *Set) ObserveExposure(r autoexp.Result) {
	s.level.Set(r.Value)
}

// ObserveCooling records the sensor temperature and cooler power
func (s *Set) ObserveCooling(t temperature.Celsius, power float64) {
	if !t.IsUnknown() {
		s.temp.Set(float64(t))
	}
	s.cooler.Set(power)
}

// Gatherer exposes the underlying registry
func (s *Set) Gatherer() prometheus.Gatherer {
	return s.reg
}

// WriteTextfile atomically replaces path with the current values
func (s *Set) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, s.reg)
}
