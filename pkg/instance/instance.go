// Package instance names the running process in logs and lock ownership.
package instance

import "os"

const fallbackID = "local"

// GetID returns the instance identifier. SHOPCHAT_INSTANCE_ID wins over the
// platform's DYNO name, and the hostname is used when neither is set.
func GetID() string {
	for _, key := range []string{"SHOPCHAT_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
