package env

import "os"

// Get reads an environment variable, falling back to def when it is unset or
// empty. Used for the handful of knobs read before config.Load runs.
func Get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
