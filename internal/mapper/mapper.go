package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
)

const (
	// SourcePrefix namespaces every metric key this connector writes to Komea.
	SourcePrefix = "sonar-"
	// SourceType tags metrics and entities originating from Sonar.
	SourceType = "SonarQube"

	AggregationLastValue = "LAST_VALUE"
	FrequencyDaily       = "DAILY"
	MissingValueNull     = "NULL_VALUE"
)

var ErrInvalidValue = errors.New("invalid measure value")

var valueTypes = map[string]string{
	"WORK_DUR": "TIME_DAYS",
	"MILLISEC": "TIME_MILLISECONDS",
	"RATING":   "INT",
}

// DefaultExcludedTypes lists the Sonar metric types that carry no single
// numeric value.
var DefaultExcludedTypes = []string{"DATA", "DISTRIB", "LEVEL", "STRING"}

var validate = validator.New()

// TranslateValueType maps a Sonar metric type to the Komea value type.
// Unknown types pass through unchanged.
func TranslateValueType(sourceType string) string {
	if target, ok := valueTypes[sourceType]; ok {
		return target
	}
	return sourceType
}

func MetricKey(sourceKey string) string {
	return SourcePrefix + sourceKey
}

// IsSourceMetric reports whether a Komea metric key belongs to this connector.
func IsSourceMetric(key string) bool {
	return strings.HasPrefix(key, SourcePrefix)
}

func ExcludedSet(types ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// FilterEligible drops metrics whose type is excluded, keeping the order of
// the others.
func FilterEligible(metrics []model.Metric, excluded map[string]struct{}) []model.Metric {
	out := make([]model.Metric, 0, len(metrics))
	for _, m := range metrics {
		if _, skip := excluded[m.Type]; skip {
			continue
		}
		out = append(out, m)
	}
	return out
}

func BuildMetricDescriptor(m model.Metric) (model.MetricDescriptor, error) {
	if err := validate.Struct(m); err != nil {
		return model.MetricDescriptor{}, connerr.Invalid("mapper.buildMetricDescriptor", m.Key, err)
	}
	return model.MetricDescriptor{
		Active:               true,
		AggregationName:      AggregationLastValue,
		Description:          m.Description,
		Formula:              "",
		Frequency:            FrequencyDaily,
		Key:                  MetricKey(m.Key),
		MissingValueStrategy: MissingValueNull,
		Name:                 m.Name,
		OtherAttributes:      map[string]string{"sonarKey": m.Key},
		Type:                 SourceType,
		Units:                "",
		ValueDirection:       m.Direction,
		ValueType:            TranslateValueType(m.Type),
	}, nil
}

func BuildEntityDescriptor(p model.Project) (model.EntityDescriptor, error) {
	if err := validate.Struct(p); err != nil {
		return model.EntityDescriptor{}, connerr.Invalid("mapper.buildEntityDescriptor", p.Key, err)
	}
	attrs := map[string]string{}
	if p.ID != "" {
		attrs["sonarId"] = p.ID
	}
	return model.EntityDescriptor{
		Active:          true,
		Description:     p.Name,
		Key:             p.Key,
		Name:            p.Name,
		OtherAttributes: attrs,
		Type:            SourceType,
	}, nil
}

// EntityTags are the time-series tags identifying the project a point
// belongs to.
func EntityTags(projectKey string) map[string]string {
	return map[string]string{
		"entity": projectKey,
		"source": "sonar",
	}
}

// decimalNumber matches plain decimal notation with an optional exponent.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// FormatValue converts a raw measure to a finite number. Only decimal
// strings and Go numeric kinds are accepted; booleans, hex notation, empty,
// NaN and infinite inputs yield ErrInvalidValue.
func FormatValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if !decimalNumber.MatchString(v) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
		}
		raw = v
	case json.Number:
		if !decimalNumber.MatchString(string(v)) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
	default:
		return 0, fmt.Errorf("%w: unsupported %T", ErrInvalidValue, raw)
	}
	value, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, raw)
	}
	return value, nil
}

func BuildTimeSeriesPoint(at time.Time, metricKey string, tags map[string]string, raw any) (model.TimeSeriesPoint, error) {
	if metricKey == "" {
		return model.TimeSeriesPoint{}, connerr.Invalid("mapper.buildTimeSeriesPoint", metricKey, errors.New("metric key is required"))
	}
	value, err := FormatValue(raw)
	if err != nil {
		return model.TimeSeriesPoint{}, connerr.Invalid("mapper.buildTimeSeriesPoint", metricKey, err)
	}
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	return model.TimeSeriesPoint{
		MetricKey: metricKey,
		Tags:      copied,
		Measures:  []model.MeasureValue{{Date: at.UTC(), Value: value}},
	}, nil
}
