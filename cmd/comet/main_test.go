package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/models"
	"github.com/ajitpratap0/comet/pkg/schema"
)

func TestEntitySchemaFallsBackWithoutMetadata(t *testing.T) {
	g := schema.NewGenerator(zap.NewNop())

	node := entitySchema(g, nil)
	require.NotNil(t, node)
	assert.True(t, node.AdditionalProperties)
	assert.Contains(t, node.Properties, "id")
}

func TestEntitySchemaUsesDescriptor(t *testing.T) {
	g := schema.NewGenerator(zap.NewNop())

	node := entitySchema(g, &models.EntityDescriptor{
		Name: "order_hdr",
		Fields: []models.FieldMeta{
			{Name: "id", Type: "pk", Required: true},
		},
	})
	require.NotNil(t, node)
	assert.Contains(t, node.Properties, "id")
	assert.False(t, node.AdditionalProperties)
}
