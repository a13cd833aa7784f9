package detection

import "fmt"

// Registry resolves radar ids to receiver configuration. It is built once
// and read-only afterwards.
type Registry struct {
	radars []Radar
	byID   map[string]int
	def    int
}

// NewRegistry validates cfg and indexes its radars. Radars without their own
// frequency inherit the configured carrier.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		radars: make([]Radar, len(cfg.Radars)),
		byID:   make(map[string]int, len(cfg.Radars)),
	}
	for i, radar := range cfg.Radars {
		if radar.FrequencyHz == 0 {
			radar.FrequencyHz = cfg.FrequencyHz()
		}
		r.radars[i] = radar
		r.byID[radar.ID] = i
	}
	if cfg.DefaultRadar != "" {
		r.def = r.byID[cfg.DefaultRadar]
	}
	return r, nil
}

// Lookup returns the radar with the given id or ErrUnknownRadar
func (r *Registry) Lookup(id string) (Radar, error) {
	i, ok := r.byID[id]
	if !ok {
		return Radar{}, fmt.Errorf("%w: %q", ErrUnknownRadar, id)
	}
	return r.radars[i], nil
}

// Resolve returns the radar with the given id, or the default radar with
// fallback set when id is unknown. Callers should report the fallback since
// it can mask a misconfigured id.
func (r *Registry) Resolve(id string) (radar Radar, fallback bool) {
	if i, ok := r.byID[id]; ok {
		return r.radars[i], false
	}
	return r.radars[r.def], true
}

// Default returns the designated default radar
func (r *Registry) Default() Radar {
	return r.radars[r.def]
}

// Radars returns every radar in configuration order
func (r *Registry) Radars() []Radar {
	out := make([]Radar, len(r.radars))
	copy(out, r.radars)
	return out
}

// WithPorts returns the radars that have a dedicated listener
func (r *Registry) WithPorts() []Radar {
	var out []Radar
	for _, radar := range r.radars {
		if radar.Port != 0 {
			out = append(out, radar)
		}
	}
	return out
}
