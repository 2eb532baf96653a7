package certs

import (
	"crypto/x509"
	"net"
)

// applySANs sets the subject alternative names for host on template. A
// host that parses as an IP address gets an IP SAN instead of a DNS SAN,
// since browsers reject CN/SAN mismatches strictly.
func applySANs(template *x509.Certificate, host string) {
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
		return
	}
	template.DNSNames = []string{host}
}
