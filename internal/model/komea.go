package model

import "time"

// MetricDescriptor is the Komea definition of a metric.
type MetricDescriptor struct {
	Active               bool              `json:"active"`
	AggregationName      string            `json:"aggregationName"`
	Description          string            `json:"description"`
	Formula              string            `json:"formula"`
	Frequency            string            `json:"frequency"`
	Key                  string            `json:"key"`
	MissingValueStrategy string            `json:"missingValueStrategy"`
	Name                 string            `json:"name"`
	OtherAttributes      map[string]string `json:"otherAttributes"`
	Type                 string            `json:"type"`
	Units                string            `json:"units"`
	ValueDirection       int               `json:"valueDirection"`
	ValueType            string            `json:"valueType"`
}

// EntityDescriptor registers an organizational object (a project) in Komea.
type EntityDescriptor struct {
	Active          bool              `json:"active"`
	Description     string            `json:"description"`
	Key             string            `json:"key"`
	Name            string            `json:"name"`
	OtherAttributes map[string]string `json:"otherAttributes"`
	Type            string            `json:"type"`
}

type MeasureValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type TimeSeriesPoint struct {
	MetricKey string            `json:"metricKey"`
	Tags      map[string]string `json:"tags"`
	Measures  []MeasureValue    `json:"measures"`
}
