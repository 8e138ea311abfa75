package ecs

import (
	"strings"
	"time"
)

// Config describes one management API session. It is built once at startup
// and not modified afterwards.
type Config struct {
	// Host name or address with optional port. A leading https:// is ignored.
	Host     string
	Username string
	Password string
	// Namespace retention classes are created in, and the default bucket
	// namespace.
	Namespace string
	// Replication group for new buckets. Looked up from the system when empty.
	ReplicationGroup string
	// Print the requests that would be sent instead of sending them.
	TestRun bool
	// Skip TLS certificate verification. ECS appliances usually run with
	// self-signed certificates.
	Insecure bool
	// Per request timeout. Zero means no timeout.
	Timeout time.Duration
}

// NormalizeHost strips the https:// scheme (in any case) and trailing
// slashes from a host argument.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if len(host) >= len("https://") && strings.EqualFold(host[:len("https://")], "https://") {
		host = host[len("https://"):]
	}
	return strings.TrimRight(host, "/")
}

// BaseURL is the root every API path is appended to.
func (c Config) BaseURL() string {
	return "https://" + NormalizeHost(c.Host)
}
