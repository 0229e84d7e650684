package instance

import (
	"os"

	"github.com/lastcall-app/lastcall-backend/pkg/env"
)

// GetID identifies this process as a lock holder. LASTCALL_WORKER_ID wins,
// then the hostname.
func GetID() string {
	if id := env.Get("LASTCALL_WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
