package imagedata

import (
	"fmt"
	"strings"
	"time"

	"github.com/nasa-jpl/cameraunit/temperature"
)

// KeyValue is one extended metadata entry
type KeyValue struct {
	Key   string
	Value string
}

// Metadata describes the acquisition of a frame.  It is fixed at capture
// time, except that extended pairs may be appended.
type Metadata struct {
	BinX, BinY int

	// OriginX and OriginY are the ROI origin in binned pixels
	OriginX, OriginY int

	// Temperature is the sensor temperature at trigger
	Temperature temperature.Celsius

	Exposure time.Duration

	// Timestamp is when the exposure was triggered
	Timestamp time.Time

	CameraName string

	Gain, GainMin, GainMax int64
	Offset                 int

	// Extended holds additional pairs in insertion order, duplicates kept
	Extended []KeyValue
}

// AddExtended appends a key/value pair.  An existing key is not replaced.
func (m *Metadata) AddExtended(key, value string) {
	m.Extended = append(m.Extended, KeyValue{Key: key, Value: value})
}

// Lookup returns every value stored under key, in insertion order
func (m Metadata) Lookup(key string) []string {
	var out []string
	for _, kv := range m.Extended {
		if kv.Key == key {
			out = append(out, kv.Value)
		}
	}
	return out
}

// Clone returns a copy that does not share the extended slice
func (m Metadata) Clone() Metadata {
	if m.Extended != nil {
		ext := make([]KeyValue, len(m.Extended))
		copy(ext, m.Extended)
		m.Extended = ext
	}
	return m
}

func (m Metadata) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metadata [%d]:\n", m.Timestamp.UnixMilli())
	fmt.Fprintf(&b, "\tCamera name: %s\n", m.CameraName)
	fmt.Fprintf(&b, "\tImage bin: %d x %d\n", m.BinX, m.BinY)
	fmt.Fprintf(&b, "\tImage origin: %d x %d\n", m.OriginX, m.OriginY)
	fmt.Fprintf(&b, "\tExposure: %v\n", m.Exposure)
	fmt.Fprintf(&b, "\tGain: %d [%d, %d], Offset: %d\n", m.Gain, m.GainMin, m.GainMax, m.Offset)
	fmt.Fprintf(&b, "\tTemperature: %v\n", m.Temperature)
	if len(m.Extended) > 0 {
		b.WriteString("\tExtended metadata:\n")
		for _, kv := range m.Extended {
			fmt.Fprintf(&b, "\t\t%s: %s\n", kv.Key, kv.Value)
		}
	}
	return b.String()
}
