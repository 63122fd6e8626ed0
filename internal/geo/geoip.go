package geo

import (
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver optionally resolves a raw network identifier to a region code
// using a MaxMind GeoLite2 country database. When the database file is
// missing or unreadable the resolver stays disabled and every lookup
// reports unresolved; it never fails a pipeline.
type Resolver struct {
	reader *geoip2.Reader
}

// OpenResolver loads the MMDB at path. An empty path or a load failure
// yields a disabled resolver, logged once.
func OpenResolver(path string) *Resolver {
	if path == "" {
		return &Resolver{}
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		slog.Warn("geoip database unavailable, using centroid-only resolution",
			"path", path, "error", err.Error())
		return &Resolver{}
	}
	slog.Info("geoip database loaded", "path", path)
	return &Resolver{reader: reader}
}

// Enabled reports whether a database is loaded.
func (r *Resolver) Enabled() bool { return r != nil && r.reader != nil }

// ResolveCountry resolves an IP to an ISO-3166 alpha-2 code.
// Returns ok=false when disabled, the IP is invalid, or the database has
// no answer.
func (r *Resolver) ResolveCountry(ip string) (string, bool) {
	if !r.Enabled() {
		return "", false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", false
	}
	record, err := r.reader.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

// Close releases the database handle.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
