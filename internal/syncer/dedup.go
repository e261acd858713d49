package syncer

// keyed is a row with an approximate identity. Two distinct events with the
// same second and counterpart collide; that is accepted.
type keyed interface {
	DedupKey() string
}

// Dedup returns the fetched rows whose key is not already stored, dropping
// repeats within fetched as well: call-log pages shift while they are read
// in parallel, so the same record can arrive on two pages. Order of fetched
// is kept.
func Dedup[T keyed](existing, fetched []T) []T {
	seen := make(map[string]struct{}, len(existing)+len(fetched))
	for _, r := range existing {
		seen[r.DedupKey()] = struct{}{}
	}
	var fresh []T
	for _, r := range fetched {
		k := r.DedupKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}
