package schema

import (
	"regexp"
	"strings"
)

// JSON schema type names produced by the mapper.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Format names attached to string types.
const (
	FormatDateTime = "date-time"
	FormatDate     = "date"
	FormatTime     = "time"
)

// typeTable maps upstream declared types to schema types. Lookup is
// case-insensitive; anything absent falls back to string.
var typeTable = map[string]string{
	"pk":        TypeInteger,
	"id":        TypeInteger,
	"int":       TypeInteger,
	"integer":   TypeInteger,
	"long":      TypeInteger,
	"smallint":  TypeInteger,
	"bigint":    TypeInteger,
	"decimal":   TypeNumber,
	"float":     TypeNumber,
	"double":    TypeNumber,
	"number":    TypeNumber,
	"numeric":   TypeNumber,
	"money":     TypeNumber,
	"bool":      TypeBoolean,
	"boolean":   TypeBoolean,
	"bit":       TypeBoolean,
	"datetime":  TypeString,
	"timestamp": TypeString,
	"date":      TypeString,
	"time":      TypeString,
	"string":    TypeString,
	"text":      TypeString,
	"varchar":   TypeString,
	"char":      TypeString,
	"uuid":      TypeString,
}

// formatTable maps declared types to string formats.
var formatTable = map[string]string{
	"datetime":  FormatDateTime,
	"timestamp": FormatDateTime,
	"date":      FormatDate,
	"time":      FormatTime,
}

// MapType maps an upstream declared type plus an optional format hint to
// a schema type and format. The lookup is a deterministic table; unknown
// declared types fall back to string. The format hint only applies when
// the declared type carries no format of its own.
func MapType(declared, formatHint string) (string, string) {
	key := strings.ToLower(strings.TrimSpace(declared))

	schemaType, ok := typeTable[key]
	if !ok {
		schemaType = TypeString
	}

	format := formatTable[key]
	if format == "" && schemaType == TypeString {
		switch formatHint {
		case FormatDateTime, FormatDate, FormatTime:
			format = formatHint
		}
	}

	return schemaType, format
}

// The two pattern families are mutually exclusive: the datetime family
// requires a time component, the date family forbids one.
var (
	dateTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
	}

	dateOnlyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`),
	}
)

// InferTimeFormat inspects a sample value and returns "date-time",
// "date", or "". It is a discovery-time fallback only and must never
// override declared metadata when both exist.
func InferTimeFormat(sample string) string {
	for _, pattern := range dateTimePatterns {
		if pattern.MatchString(sample) {
			return FormatDateTime
		}
	}

	for _, pattern := range dateOnlyPatterns {
		if pattern.MatchString(sample) {
			return FormatDate
		}
	}

	return ""
}
