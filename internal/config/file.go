package config

import "github.com/BurntSushi/toml"

// File holds the subset of server/client configuration that may be
// supplied via an optional TOML file instead of flags, layered under
// whatever flags the user passes explicitly: flags always win. Only
// cmd/parcel-server loads a config file; the Nickname and CertDomain
// fields are decoded but nothing reads them.
type File struct {
	ServerAddress string `toml:"server_address"`
	Root          string `toml:"root"`
	Cert          string `toml:"cert"`
	Key           string `toml:"key"`
	CACert        string `toml:"ca_cert"`
	WebAddress    string `toml:"web_address"`
	DatabaseURL   string `toml:"database_url"`
	Nickname      string `toml:"nick"`
	CertDomain    string `toml:"cert_domain"`
}

// LoadFile decodes a TOML config file at path. A path that cannot be
// opened or parsed is an error; callers only invoke LoadFile when a
// --config flag was given.
func LoadFile(path string) (File, error) {
	var f File
	_, err := toml.DecodeFile(path, &f)
	return f, err
}

// FirstNonEmpty returns the first non-empty string among vs, used to
// implement flag-over-file-over-default precedence at each call site.
func FirstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
