// Package config implements the address-normalization helper shared by
// cmd/parcel-server and cmd/parcel-client, and the TOML-file loading
// used by cmd/parcel-server.
package config

import "strings"

// NormalizeAddress rewrites a "localhost"-prefixed address to use
// 127.0.0.1. Addresses not starting with "localhost" are returned
// unchanged.
func NormalizeAddress(addr string) string {
	if suffix, ok := strings.CutPrefix(addr, "localhost"); ok {
		return "127.0.0.1" + suffix
	}
	return addr
}
