package llm

// Registry is the ordered adapter set consulted by the router. It is built
// once and never mutated, so concurrent readers need no locking.
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	ps := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Registry{providers: ps}
}

// Lookup returns the first enabled provider, in registration order, that
// supports model.
func (r *Registry) Lookup(model string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Enabled() && p.Supports(model) {
			return p, true
		}
	}
	return nil, false
}

// Providers returns a copy of the registered providers.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// EnabledCount reports how many providers can take traffic.
func (r *Registry) EnabledCount() int {
	n := 0
	for _, p := range r.providers {
		if p.Enabled() {
			n++
		}
	}
	return n
}
