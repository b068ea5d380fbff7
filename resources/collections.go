package resources

// The helpers below always return a new slice so a cached collection is
// never written through.

func appendCopy[E any](s []E, items ...E) []E {
	out := make([]E, 0, len(s)+len(items))
	out = append(out, s...)
	return append(out, items...)
}

func replaceWhere[E any](s []E, match func(E) bool, fn func(E) E) []E {
	out := make([]E, len(s))
	for i, v := range s {
		if match(v) {
			v = fn(v)
		}
		out[i] = v
	}
	return out
}

func removeWhere[E any](s []E, match func(E) bool) []E {
	out := make([]E, 0, len(s))
	for _, v := range s {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}

func findWhere[E any](s []E, match func(E) bool) (E, bool) {
	for _, v := range s {
		if match(v) {
			return v, true
		}
	}
	var zero E
	return zero, false
}
