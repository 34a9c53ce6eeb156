package store

// UnionStrings adds values to existing with set semantics, preserving the
// order of first appearance.
func UnionStrings(existing []string, values ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(values))
	for _, v := range existing {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// RemoveStrings removes values from existing; absent values are ignored.
func RemoveStrings(existing []string, values ...string) []string {
	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		drop[v] = struct{}{}
	}
	out := make([]string, 0, len(existing))
	for _, v := range existing {
		if _, ok := drop[v]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}
