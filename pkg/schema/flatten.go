package schema

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ConflictKind classifies a flatten/deflate key conflict.
type ConflictKind string

const (
	// ConflictKeyCollision marks a flattened key colliding with an
	// existing one.
	ConflictKeyCollision ConflictKind = "key_collision"
	// ConflictScalarAtPath marks a scalar occupying a path deflation
	// wants to nest through.
	ConflictScalarAtPath ConflictKind = "scalar_at_path"
	// ConflictObjectAtKey marks a nested object occupying a key
	// deflation wants to scalarize.
	ConflictObjectAtKey ConflictKind = "object_at_key"
)

// Conflict reports one flatten/deflate key conflict. Conflicts are
// reported, never auto-resolved: the value that was there first stays.
type Conflict struct {
	Path string       `json:"path"`
	Kind ConflictKind `json:"kind"`
}

// arraySegment marks flattened array elements: key<sep>items<sep>index.
const arraySegment = "items"

// Flattener flattens nested records into separator-joined keys and
// rebuilds them. Flatten and Deflate are inverse for any record without
// separator collisions.
type Flattener struct {
	Separator     string
	MaxDepth      int
	FlattenArrays bool

	logger *zap.Logger
}

// NewFlattener creates a flattener with the given key separator,
// maximum flattening depth, and array handling.
func NewFlattener(separator string, maxDepth int, flattenArrays bool, logger *zap.Logger) *Flattener {
	return &Flattener{
		Separator:     separator,
		MaxDepth:      maxDepth,
		FlattenArrays: flattenArrays,
		logger:        logger.With(zap.String("component", "flattener")),
	}
}

// Flatten joins nested object properties into separator-joined keys up
// to MaxDepth; deeper subtrees stay nested. Arrays are flattened to
// key<sep>items<sep>index only when FlattenArrays is set; empty arrays
// remain empty arrays. Key collisions are returned as conflicts with the
// first-written value preserved.
func (f *Flattener) Flatten(record map[string]interface{}) (map[string]interface{}, []Conflict) {
	out := make(map[string]interface{}, len(record))
	var conflicts []Conflict

	keys := sortedKeys(record)
	for _, key := range keys {
		f.flattenInto(out, key, record[key], 0, &conflicts)
	}

	return out, conflicts
}

func (f *Flattener) flattenInto(out map[string]interface{}, key string, value interface{}, level int, conflicts *[]Conflict) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			f.set(out, key, v, conflicts)
			return
		}
		if level >= f.MaxDepth {
			f.logger.Warn("max flatten depth reached, keeping subtree nested",
				zap.String("key", key),
				zap.Int("max_depth", f.MaxDepth))
			f.set(out, key, v, conflicts)
			return
		}
		for _, child := range sortedKeys(v) {
			f.flattenInto(out, key+f.Separator+child, v[child], level+1, conflicts)
		}

	case []interface{}:
		if !f.FlattenArrays || len(v) == 0 {
			f.set(out, key, v, conflicts)
			return
		}
		for i, elem := range v {
			elemKey := key + f.Separator + arraySegment + f.Separator + strconv.Itoa(i)
			f.flattenInto(out, elemKey, elem, level+1, conflicts)
		}

	default:
		f.set(out, key, v, conflicts)
	}
}

// set writes a flattened leaf, flagging (and preserving) collisions.
func (f *Flattener) set(out map[string]interface{}, key string, value interface{}, conflicts *[]Conflict) {
	if _, exists := out[key]; exists {
		*conflicts = append(*conflicts, Conflict{Path: key, Kind: ConflictKeyCollision})
		return
	}
	out[key] = value
}

// Deflate rebuilds nesting from separator-joined keys. Both conflict
// classes are detected and reported: a scalar occupying a path that
// needs nesting (flagged on the longer key), and a nested object
// occupying a key that needs a scalar (flagged on the shorter key).
// Neither side is resolved: the shorter key keeps its value at its own
// path and the longer key stays flat in the result.
func (f *Flattener) Deflate(flat map[string]interface{}) (map[string]interface{}, []Conflict) {
	out := make(map[string]interface{}, len(flat))
	var conflicts []Conflict

	keys := sortedKeys(flat)
	keepFlat := f.findPrefixConflicts(keys, &conflicts)

	for _, key := range keys {
		if keepFlat[key] {
			out[key] = flat[key]
			continue
		}
		segments := strings.Split(key, f.Separator)
		f.setPath(out, out, segments, key, flat[key], &conflicts)
	}

	return out, conflicts
}

// findPrefixConflicts scans sorted keys for pairs where one key is a
// strict segment-prefix of another. Such a pair can never deflate
// cleanly: the short key wants a value exactly where the long key wants
// an object. Both classes are reported and the long key is left flat.
func (f *Flattener) findPrefixConflicts(keys []string, conflicts *[]Conflict) map[string]bool {
	keepFlat := make(map[string]bool)

	for i, short := range keys {
		prefix := short + f.Separator
		for j := i + 1; j < len(keys); j++ {
			if !strings.HasPrefix(keys[j], short) {
				break
			}
			if strings.HasPrefix(keys[j], prefix) {
				*conflicts = append(*conflicts,
					Conflict{Path: keys[j], Kind: ConflictScalarAtPath},
					Conflict{Path: short, Kind: ConflictObjectAtKey})
				keepFlat[keys[j]] = true
			}
		}
	}

	return keepFlat
}

// setPath places value at the nested location named by segments. On
// conflict the existing structure is preserved and the value is kept
// under its full flat key at the root.
func (f *Flattener) setPath(root, node map[string]interface{}, segments []string, flatKey string, value interface{}, conflicts *[]Conflict) {
	seg := segments[0]

	if len(segments) == 1 {
		if existing, ok := node[seg]; ok {
			kind := ConflictScalarAtPath
			if _, isMap := existing.(map[string]interface{}); isMap {
				kind = ConflictObjectAtKey
			}
			*conflicts = append(*conflicts, Conflict{Path: flatKey, Kind: kind})
			f.preserveFlat(root, flatKey, value)
			return
		}
		node[seg] = value
		return
	}

	// Array convention: key<sep>items<sep>index[<sep>...].
	if segments[1] == arraySegment && len(segments) >= 3 && isIndex(segments[2]) {
		f.setArrayPath(root, node, seg, segments, flatKey, value, conflicts)
		return
	}

	existing, ok := node[seg]
	if !ok {
		child := make(map[string]interface{})
		node[seg] = child
		f.setPath(root, child, segments[1:], flatKey, value, conflicts)
		return
	}

	child, isMap := existing.(map[string]interface{})
	if !isMap {
		*conflicts = append(*conflicts, Conflict{Path: flatKey, Kind: ConflictScalarAtPath})
		f.preserveFlat(root, flatKey, value)
		return
	}

	f.setPath(root, child, segments[1:], flatKey, value, conflicts)
}

// setArrayPath rebuilds one array element from its flattened key,
// descending through nested items<sep>index pairs for arrays of arrays.
func (f *Flattener) setArrayPath(root, node map[string]interface{}, seg string, segments []string, flatKey string, value interface{}, conflicts *[]Conflict) {
	arr, ok := arrayValue(node[seg])
	if !ok {
		*conflicts = append(*conflicts, Conflict{Path: flatKey, Kind: ConflictScalarAtPath})
		f.preserveFlat(root, flatKey, value)
		return
	}

	idx, _ := strconv.Atoi(segments[2])
	for len(arr) <= idx {
		arr = append(arr, nil)
	}
	node[seg] = arr

	rest := segments[3:]
	for len(rest) >= 2 && rest[0] == arraySegment && isIndex(rest[1]) {
		inner, ok := arrayValue(arr[idx])
		if !ok {
			*conflicts = append(*conflicts, Conflict{Path: flatKey, Kind: ConflictScalarAtPath})
			f.preserveFlat(root, flatKey, value)
			return
		}
		innerIdx, _ := strconv.Atoi(rest[1])
		for len(inner) <= innerIdx {
			inner = append(inner, nil)
		}
		arr[idx] = inner
		arr, idx, rest = inner, innerIdx, rest[2:]
	}

	if len(rest) == 0 {
		arr[idx] = value
		return
	}

	elem, isMap := arr[idx].(map[string]interface{})
	if arr[idx] == nil {
		elem = make(map[string]interface{})
		arr[idx] = elem
	} else if !isMap {
		*conflicts = append(*conflicts, Conflict{Path: flatKey, Kind: ConflictScalarAtPath})
		f.preserveFlat(root, flatKey, value)
		return
	}

	f.setPath(root, elem, rest, flatKey, value, conflicts)
}

// arrayValue interprets an existing slot as an array: absent and nil
// slots become a fresh array, anything else non-slice is a conflict.
func arrayValue(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, true
	}
	arr, ok := v.([]interface{})
	return arr, ok
}

// preserveFlat keeps an un-deflatable value under its original flat key.
func (f *Flattener) preserveFlat(root map[string]interface{}, flatKey string, value interface{}) {
	if _, exists := root[flatKey]; !exists {
		root[flatKey] = value
	}
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
