package discovery

import (
	"path"
	"sort"
)

// FilterEntities applies the configured include and exclude glob lists
// to a discovered catalog. An entity survives when it matches at least
// one include pattern (or the include list is empty) and matches no
// exclude pattern. The two lists combine via AND; the degenerate case
// of the same pattern in both lists is rejected at config validation,
// not here. Returned names are sorted.
func (d *Discoverer) FilterEntities(entities map[string]string) []string {
	include := d.cfg.Entities.Include
	exclude := d.cfg.Entities.Exclude

	var selected []string
	for name := range entities {
		if len(include) > 0 && !matchesAny(include, name) {
			continue
		}
		if matchesAny(exclude, name) {
			continue
		}
		selected = append(selected, name)
	}

	sort.Strings(selected)
	return selected
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		// Match errors only arise from malformed patterns, which
		// config validation rejects up front.
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
