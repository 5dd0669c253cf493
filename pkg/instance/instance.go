package instance

import (
	"os"

	"github.com/angelmondragon/licensehub-wallet/pkg/env"
)

// GetID identifies the running replica in logs. The platform dyno name wins,
// then WORKER_ID, then the hostname.
func GetID() string {
	if id := env.First("DYNO", "WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
