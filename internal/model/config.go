package model

// Config holds every tunable of a scan. Values are layered: defaults, then
// an optional TOML file, then environment, then command-line flags.
type Config struct {
	Endpoint       string `toml:"endpoint"`        // classification service, queried as <endpoint>?ip=<addr>
	TimeoutSeconds int    `toml:"timeout_seconds"` // per-probe timeout
	Concurrency    int    `toml:"concurrency"`     // 1 = strictly sequential
	InputFile      string `toml:"input"`
	OutputFormat   string `toml:"format"`         // text or json
	UpstreamProxy  string `toml:"upstream_proxy"` // optional socks5://[user:pass@]host:port
	GeoIPDB        string `toml:"geoip_db"`       // optional GeoLite2 City/Country mmdb
	GeoASNDB       string `toml:"geoip_asn_db"`   // optional GeoLite2 ASN mmdb
	ShowFailures   bool   `toml:"show_failures"`
	Verbose        bool   `toml:"verbose"`
}

const DefaultEndpoint = "https://pyip.bexnxx.us.kg/api"

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		TimeoutSeconds: 10,
		Concurrency:    1,
		OutputFormat:   "text",
	}
}
