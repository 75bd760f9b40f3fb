package utils

// UniqueUint returns the distinct values of ids, first occurrence order
// preserved. Used when collecting author ids before a batch profile fetch.
func UniqueUint(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
