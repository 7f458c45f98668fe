package models

// EntityDescriptor describes one upstream entity: its endpoint and the
// field metadata returned by the describe endpoint. Descriptors are
// created by discovery and cached with a TTL.
type EntityDescriptor struct {
	// Name is the entity name (e.g. "order_hdr")
	Name string `json:"name"`

	// Endpoint is the entity's data endpoint URL
	Endpoint string `json:"endpoint"`

	// Fields lists the declared field metadata in upstream order
	Fields []FieldMeta `json:"fields"`
}

// FieldMeta is the declared metadata for a single entity field.
type FieldMeta struct {
	// Name is the field identifier
	Name string `json:"name"`

	// Type is the upstream declared type ("pk", "datetime", ...);
	// empty when the upstream omits it
	Type string `json:"type"`

	// Required reports whether the upstream marks the field required
	Required bool `json:"required"`

	// Nullable reports whether the upstream allows nulls
	Nullable bool `json:"nullable"`

	// MaxLength is the declared maximum length, 0 when unbounded
	MaxLength int `json:"max_length"`

	// FormatHint is an optional discovery-time format inferred from
	// sample values; it never overrides a declared type
	FormatHint string `json:"format_hint,omitempty"`
}

// Field returns the named field metadata, or nil.
func (d *EntityDescriptor) Field(name string) *FieldMeta {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}
