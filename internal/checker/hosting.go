package checker

import (
	"regexp"
)

var datacenterRegex = regexp.MustCompile(`(?i)(cloud|hosting|data ?cent|server|colo|digitalocean|aws|amazon|google|microsoft|azure|hetzner|ovh|linode|vultr|alibaba|tencent|oracle)`)

// IsHostingISP guesses whether isp names datacenter / hosting infrastructure
// rather than a residential or mobile network.
//
// This is a keyword match only. An empty isp is never hosting.
func IsHostingISP(isp string) bool {
	if isp == "" {
		return false
	}
	return datacenterRegex.MatchString(isp)
}
