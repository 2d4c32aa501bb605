package checker

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoInfo is the provider information we can attach to an address locally.
type GeoInfo struct {
	CountryCode string
	ISP         string
}

// GeoResolver fills in what the service left out.
type GeoResolver interface {
	Lookup(ip string) (GeoInfo, error)
}

// GeoLite resolves country and ASN organisation from MaxMind databases.
type GeoLite struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// OpenGeoLite opens the given databases. Either path may be empty, but not
// both.
func OpenGeoLite(countryPath, asnPath string) (*GeoLite, error) {
	if countryPath == "" && asnPath == "" {
		return nil, errors.New("no geolite database configured")
	}

	g := &GeoLite{}
	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, fmt.Errorf("open country db: %w", err)
		}
		g.country = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open asn db: %w", err)
		}
		g.asn = r
	}
	return g, nil
}

func (g *GeoLite) Lookup(ip string) (GeoInfo, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return GeoInfo{}, fmt.Errorf("invalid ip %q", ip)
	}

	var info GeoInfo
	if g.country != nil {
		if rec, err := g.country.Country(parsed); err == nil {
			info.CountryCode = rec.Country.IsoCode
		}
	}
	if g.asn != nil {
		if rec, err := g.asn.ASN(parsed); err == nil {
			info.ISP = rec.AutonomousSystemOrganization
		}
	}
	return info, nil
}

func (g *GeoLite) Close() error {
	var errs []error
	if g.country != nil {
		errs = append(errs, g.country.Close())
	}
	if g.asn != nil {
		errs = append(errs, g.asn.Close())
	}
	return errors.Join(errs...)
}
