package httpapi

const defaultMaxBodyBytes int64 = 1 << 20

// maxBodyBytes caps JSON and preset request bodies.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes sets the request body cap. n <= 0 restores 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	maxBodyBytes = n
}

// corsOptions is read by NewMux. CORS stays off unless enabled.
var corsOptions struct {
	enabled bool
	origins []string
	methods []string
	headers []string
}

// SetCORSOptions configures CORS for muxes built afterwards. Empty methods
// or headers fall back to what the UI needs.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsOptions.enabled = enabled
	corsOptions.origins = append([]string(nil), origins...)
	corsOptions.methods = append([]string(nil), methods...)
	corsOptions.headers = append([]string(nil), headers...)
	if len(corsOptions.methods) == 0 {
		corsOptions.methods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(corsOptions.headers) == 0 {
		corsOptions.headers = []string{"Accept", "Content-Type", "X-Request-Id", "X-Log-Level"}
	}
}
