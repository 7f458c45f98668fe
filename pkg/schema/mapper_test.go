package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		declared string
		wantType string
		wantFmt  string
	}{
		{"pk", TypeInteger, ""},
		{"id", TypeInteger, ""},
		{"integer", TypeInteger, ""},
		{"long", TypeInteger, ""},
		{"decimal", TypeNumber, ""},
		{"double", TypeNumber, ""},
		{"money", TypeNumber, ""},
		{"boolean", TypeBoolean, ""},
		{"bit", TypeBoolean, ""},
		{"datetime", TypeString, FormatDateTime},
		{"timestamp", TypeString, FormatDateTime},
		{"date", TypeString, FormatDate},
		{"time", TypeString, FormatTime},
		{"string", TypeString, ""},
		{"varchar", TypeString, ""},
		{"uuid", TypeString, ""},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			gotType, gotFmt := MapType(tt.declared, "")
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantFmt, gotFmt)
		})
	}
}

func TestMapTypeUnknownFallsBackToString(t *testing.T) {
	gotType, gotFmt := MapType("geography", "")
	assert.Equal(t, TypeString, gotType)
	assert.Equal(t, "", gotFmt)

	gotType, _ = MapType("", "")
	assert.Equal(t, TypeString, gotType)
}

func TestMapTypeCaseInsensitive(t *testing.T) {
	gotType, gotFmt := MapType("DateTime", "")
	assert.Equal(t, TypeString, gotType)
	assert.Equal(t, FormatDateTime, gotFmt)
}

func TestMapTypeFormatHint(t *testing.T) {
	// Hint applies when the declared type has no format of its own.
	gotType, gotFmt := MapType("string", FormatDateTime)
	assert.Equal(t, TypeString, gotType)
	assert.Equal(t, FormatDateTime, gotFmt)

	// Declared metadata wins over the hint.
	_, gotFmt = MapType("date", FormatDateTime)
	assert.Equal(t, FormatDate, gotFmt)

	// Hints never apply to non-string types.
	gotType, gotFmt = MapType("pk", FormatDateTime)
	assert.Equal(t, TypeInteger, gotType)
	assert.Equal(t, "", gotFmt)

	// Unrecognized hints are dropped.
	_, gotFmt = MapType("string", "email")
	assert.Equal(t, "", gotFmt)
}

func TestInferTimeFormat(t *testing.T) {
	tests := []struct {
		sample string
		want   string
	}{
		{"2024-03-01T12:30:45Z", FormatDateTime},
		{"2024-03-01T12:30:45.123+02:00", FormatDateTime},
		{"2024-03-01 12:30:45", FormatDateTime},
		{"2024-03-01", FormatDate},
		{"2024/03/01", FormatDate},
		{"hello", ""},
		{"2024-03-01T12:30", ""},
		{"12:30:45", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.sample, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTimeFormat(tt.sample))
		})
	}
}

func TestInferTimeFormatFamiliesAreExclusive(t *testing.T) {
	// No sample may match both families.
	samples := []string{
		"2024-03-01T12:30:45Z",
		"2024-03-01 12:30:45",
		"2024-03-01",
		"2024/03/01",
	}

	for _, sample := range samples {
		dt, date := false, false
		for _, p := range dateTimePatterns {
			if p.MatchString(sample) {
				dt = true
			}
		}
		for _, p := range dateOnlyPatterns {
			if p.MatchString(sample) {
				date = true
			}
		}
		assert.False(t, dt && date, "sample %q matched both families", sample)
	}
}
