// Package instance names the running process for log correlation.
package instance

import "github.com/angelmondragon/storefront-backend/pkg/env"

const fallbackID = "local"

// ID returns the platform-assigned dyno or worker name, falling back to the
// host name and finally "local".
func ID() string {
	return env.First(fallbackID, "DYNO", "WORKER_ID", "HOSTNAME")
}
