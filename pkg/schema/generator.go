// Package schema builds JSON schemas from entity metadata and flattens
// nested records for emission.
package schema

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/models"
)

// Node is a recursive JSON schema node. Nullable fields carry a
// two-element type union [T, "null"].
type Node struct {
	Type                 []string         `json:"type,omitempty"`
	Format               string           `json:"format,omitempty"`
	Properties           map[string]*Node `json:"properties,omitempty"`
	Items                *Node            `json:"items,omitempty"`
	Required             []string         `json:"required,omitempty"`
	MaxLength            int              `json:"maxLength,omitempty"`
	AdditionalProperties bool             `json:"additionalProperties,omitempty"`
}

// ExtractedAtField is the synthetic timestamp property added to the
// fallback schema for entities that expose no field metadata.
const ExtractedAtField = "extracted_at"

// Generator builds schemas from entity descriptors.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a schema generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{
		logger: logger.With(zap.String("component", "schema_generator")),
	}
}

// Generate builds a schema node from an entity descriptor. Every
// declared field becomes exactly one top-level property with a nullable
// type union; fields the upstream marks required are listed in the
// schema's required array. A field with no declared type maps to string,
// using the discovery-time format hint when one exists. Entities with
// zero declared fields get the minimal fallback schema.
func (g *Generator) Generate(descriptor *models.EntityDescriptor) *Node {
	if len(descriptor.Fields) == 0 {
		g.logger.Warn("entity has no field metadata, using fallback schema",
			zap.String("entity", descriptor.Name))
		return FallbackSchema()
	}

	node := &Node{
		Type:       []string{TypeObject},
		Properties: make(map[string]*Node, len(descriptor.Fields)),
	}

	for _, field := range descriptor.Fields {
		node.Properties[field.Name] = g.propertyFor(field)
		if field.Required {
			node.Required = append(node.Required, field.Name)
		}
	}

	return node
}

// propertyFor maps one field's declared metadata to a schema property.
func (g *Generator) propertyFor(field models.FieldMeta) *Node {
	declared := field.Type
	if declared == "" {
		declared = TypeString
	}

	schemaType, format := MapType(declared, field.FormatHint)

	prop := &Node{
		Type:   []string{schemaType, "null"},
		Format: format,
	}

	if schemaType == TypeString && field.MaxLength > 0 {
		prop.MaxLength = field.MaxLength
	}

	return prop
}

// FallbackSchema is the minimal schema for entities without metadata:
// an id, the extraction timestamp, and open additional properties.
func FallbackSchema() *Node {
	return &Node{
		Type: []string{TypeObject},
		Properties: map[string]*Node{
			"id": {
				Type: []string{TypeInteger, "null"},
			},
			ExtractedAtField: {
				Type:   []string{TypeString, "null"},
				Format: FormatDateTime,
			},
		},
		AdditionalProperties: true,
	}
}
