// Package energyid delivers waste measurements to an EnergyID incoming webhook.
package energyid

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"

	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

const (
	// Unit is the unit of every measurement sent.
	Unit = "kg"
	// ReadingType marks every data point as a standalone reading rather
	// than a cumulative meter value.
	ReadingType = "interval"

	timestampLayout = "2006-01-02T15:04:05-0700"
	readingHour     = 7
)

// Timestamp places a calendar date at 07:00 UTC. Midnight would shift to the
// previous day once a receiver converts it to a zone behind UTC around DST.
func Timestamp(d civil.Date) string {
	return d.In(time.UTC).Add(readingHour * time.Hour).Format(timestampLayout)
}

// Point is one [timestamp, weight] pair.
type Point struct {
	Timestamp string
	Value     float64
}

// MarshalJSON encodes the point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Timestamp, p.Value})
}

// Payload is the body of one webhook call.
type Payload struct {
	// Properties are copied from configuration; the fixed fields win on
	// conflicting keys.
	Properties  map[string]any
	Metric      string
	Unit        string
	ReadingType string
	Data        []Point
}

// Compose builds the payload for one category batch.
func Compose(category waste.Category, properties map[string]any, measurements []waste.Measurement) Payload {
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	data := make([]Point, 0, len(measurements))
	for _, m := range measurements {
		data = append(data, Point{Timestamp: Timestamp(m.Date), Value: m.Kilograms()})
	}
	return Payload{
		Properties:  props,
		Metric:      category.Metric(),
		Unit:        Unit,
		ReadingType: ReadingType,
		Data:        data,
	}
}

// MarshalJSON flattens properties and fixed fields into one object. Keys are
// emitted in sorted order, so equal payloads encode to equal bytes.
func (p Payload) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Properties)+4)
	for k, v := range p.Properties {
		body[k] = v
	}
	body["metric"] = p.Metric
	body["unit"] = p.Unit
	body["readingType"] = p.ReadingType
	data := p.Data
	if data == nil {
		data = []Point{}
	}
	body["data"] = data
	return json.Marshal(body)
}
