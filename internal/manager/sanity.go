package manager

// SanityReport describes whether the configured backend can run at all.
type SanityReport struct {
	Backend     string `json:"backend"`
	LlamaBuilt  bool   `json:"llama_built"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}

// SanityCheck reports runtime readiness. It does not mutate state and is
// safe to call at any time.
func (c *Controller) SanityCheck() SanityReport {
	r := SanityReport{Backend: string(c.backend.Kind()), LlamaBuilt: llamaBuilt}
	if loader, ok := c.backend.(ModelLoader); ok {
		r.ModelLoaded = loader.Loaded()
		if !llamaBuilt {
			r.Error = "built without llama tag; local backend unavailable"
		}
	}
	return r
}

// Ready reports whether a generation could start without a dependency
// error.
func (c *Controller) Ready() bool { return c.SanityCheck().Error == "" }
