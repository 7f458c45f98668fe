package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFlattener(maxDepth int, arrays bool) *Flattener {
	return NewFlattener("__", maxDepth, arrays, zap.NewNop())
}

func TestFlattenNestedObjects(t *testing.T) {
	f := newTestFlattener(5, false)

	flat, conflicts := f.Flatten(map[string]interface{}{
		"id": 1,
		"address": map[string]interface{}{
			"city": "Oslo",
			"geo": map[string]interface{}{
				"lat": 59.9,
			},
		},
	})

	assert.Empty(t, conflicts)
	assert.Equal(t, map[string]interface{}{
		"id":                1,
		"address__city":     "Oslo",
		"address__geo__lat": 59.9,
	}, flat)
}

func TestFlattenMaxDepthKeepsSubtreeNested(t *testing.T) {
	f := newTestFlattener(1, false)

	flat, conflicts := f.Flatten(map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": 1,
			},
		},
	})

	assert.Empty(t, conflicts)
	// One level flattened, the deeper subtree survives intact.
	assert.Equal(t, map[string]interface{}{
		"a__b": map[string]interface{}{"c": 1},
	}, flat)
}

func TestFlattenArrays(t *testing.T) {
	f := newTestFlattener(5, true)

	flat, conflicts := f.Flatten(map[string]interface{}{
		"lines": []interface{}{
			map[string]interface{}{"qty": 2},
			map[string]interface{}{"qty": 5},
		},
	})

	assert.Empty(t, conflicts)
	assert.Equal(t, map[string]interface{}{
		"lines__items__0__qty": 2,
		"lines__items__1__qty": 5,
	}, flat)
}

func TestFlattenArraysDisabled(t *testing.T) {
	f := newTestFlattener(5, false)

	lines := []interface{}{map[string]interface{}{"qty": 2}}
	flat, conflicts := f.Flatten(map[string]interface{}{"lines": lines})

	assert.Empty(t, conflicts)
	assert.Equal(t, map[string]interface{}{"lines": lines}, flat)
}

func TestFlattenEmptyArrayStaysEmptyArray(t *testing.T) {
	f := newTestFlattener(5, true)

	flat, conflicts := f.Flatten(map[string]interface{}{
		"lines": []interface{}{},
	})

	assert.Empty(t, conflicts)
	assert.Equal(t, map[string]interface{}{"lines": []interface{}{}}, flat)
}

func TestFlattenKeyCollisionFlaggedNotResolved(t *testing.T) {
	f := newTestFlattener(5, false)

	flat, conflicts := f.Flatten(map[string]interface{}{
		"a":    map[string]interface{}{"b": 2},
		"a__b": 1,
	})

	require.Len(t, conflicts, 1)
	assert.Equal(t, "a__b", conflicts[0].Path)
	assert.Equal(t, ConflictKeyCollision, conflicts[0].Kind)
	// The first-written value stays.
	assert.Equal(t, 2, flat["a__b"])
}

func TestDeflateRoundTrip(t *testing.T) {
	f := newTestFlattener(5, true)

	original := map[string]interface{}{
		"id": 1,
		"address": map[string]interface{}{
			"city": "Oslo",
			"geo": map[string]interface{}{
				"lat": 59.9,
				"lon": 10.7,
			},
		},
		"lines": []interface{}{
			map[string]interface{}{"sku": "A1", "qty": 2},
			map[string]interface{}{"sku": "B2", "qty": 5},
		},
		"tags": []interface{}{},
	}

	flat, conflicts := f.Flatten(original)
	require.Empty(t, conflicts)

	restored, conflicts := f.Deflate(flat)
	require.Empty(t, conflicts)
	assert.Equal(t, original, restored)
}

func TestDeflateRoundTripScalarArrays(t *testing.T) {
	f := newTestFlattener(5, true)

	original := map[string]interface{}{
		"codes": []interface{}{"x", "y", "z"},
	}

	flat, _ := f.Flatten(original)
	restored, conflicts := f.Deflate(flat)

	assert.Empty(t, conflicts)
	assert.Equal(t, original, restored)
}

func TestDeflateRoundTripNestedArrays(t *testing.T) {
	f := newTestFlattener(6, true)

	original := map[string]interface{}{
		"grid": []interface{}{
			[]interface{}{1, 2},
			[]interface{}{},
		},
		"lines": []interface{}{
			map[string]interface{}{"tags": []interface{}{"x", "y"}},
		},
	}

	flat, conflicts := f.Flatten(original)
	require.Empty(t, conflicts)
	require.Equal(t, map[string]interface{}{
		"grid__items__0__items__0":        1,
		"grid__items__0__items__1":        2,
		"grid__items__1":                  []interface{}{},
		"lines__items__0__tags__items__0": "x",
		"lines__items__0__tags__items__1": "y",
	}, flat)

	restored, conflicts := f.Deflate(flat)
	require.Empty(t, conflicts)
	assert.Equal(t, original, restored)
}

func TestDeflateScalarAtPathConflict(t *testing.T) {
	f := newTestFlattener(5, false)

	// "a" is a scalar but "a__b" needs to nest through it.
	restored, conflicts := f.Deflate(map[string]interface{}{
		"a":    1,
		"a__b": 2,
	})

	// The pair is reported from both sides: the long key is blocked by
	// a scalar, the short key is shadowed by an object.
	require.Len(t, conflicts, 2)
	assert.Equal(t, ConflictScalarAtPath, conflicts[0].Kind)
	assert.Equal(t, "a__b", conflicts[0].Path)
	assert.Equal(t, ConflictObjectAtKey, conflicts[1].Kind)
	assert.Equal(t, "a", conflicts[1].Path)
	// Neither value is dropped: the scalar keeps its path, the long key
	// stays flat.
	assert.Equal(t, 1, restored["a"])
	assert.Equal(t, 2, restored["a__b"])
}

func TestDeflateObjectAtKeyConflict(t *testing.T) {
	f := newTestFlattener(5, false)

	restored, conflicts := f.Deflate(map[string]interface{}{
		"a__b__c": 1,
		"a__b":    2,
	})

	require.Len(t, conflicts, 2)
	assert.Equal(t, ConflictScalarAtPath, conflicts[0].Kind)
	assert.Equal(t, "a__b__c", conflicts[0].Path)
	assert.Equal(t, ConflictObjectAtKey, conflicts[1].Kind)
	assert.Equal(t, "a__b", conflicts[1].Path)
	// The short key deflates normally.
	nested, ok := restored["a"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, nested["b"])
	// The long key keeps its flat form.
	assert.Equal(t, 1, restored["a__b__c"])
}

func TestDeflatePlainKeys(t *testing.T) {
	f := newTestFlattener(5, false)

	restored, conflicts := f.Deflate(map[string]interface{}{
		"id":   7,
		"name": "widget",
	})

	assert.Empty(t, conflicts)
	assert.Equal(t, map[string]interface{}{"id": 7, "name": "widget"}, restored)
}
