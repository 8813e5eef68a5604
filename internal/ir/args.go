package ir

// Args is the named-value mapping carried by raw and derived events.
type Args map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty, non-nil map.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a new mapping holding a's entries overlaid with overrides.
// Keys present in both take the value from overrides. Neither input is
// modified.
func (a Args) Merge(overrides Args) Args {
	out := make(Args, len(a)+len(overrides))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Has reports whether key is present, even when its value is nil.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}
