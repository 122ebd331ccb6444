package proxytrust

var (
	// loopbackHostPatterns covers a reverse proxy running on the same host.
	loopbackHostPatterns = []string{"127.0.0.0/8", "::1/128"}

	// privateHostPatterns covers private-network ranges commonly used for
	// trusted upstream proxies in VM and internal network deployments.
	privateHostPatterns = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"}
)

// PresetLoopbackProxy trusts a reverse proxy on the same host (for example
// NGINX on localhost) with the default header set.
func PresetLoopbackProxy() Option {
	return Trust(TrustEntry{Hosts: cloneStrings(loopbackHostPatterns)})
}

// PresetPrivateNetworkProxy trusts loopback and private-network proxies with
// the default header set, the typical VM or internal-network deployment.
func PresetPrivateNetworkProxy() Option {
	hosts := make([]string, 0, len(loopbackHostPatterns)+len(privateHostPatterns))
	hosts = append(hosts, loopbackHostPatterns...)
	hosts = append(hosts, privateHostPatterns...)

	return Trust(TrustEntry{Hosts: hosts})
}

// PresetForwardedEdge trusts the given edge hosts and honors only the
// RFC 7239 Forwarded header from them, for edges that consolidate proxy
// information into a single header.
func PresetForwardedEdge(hosts ...string) Option {
	return Trust(TrustEntry{
		Hosts:           cloneStrings(hosts),
		IPHeaders:       []ChainHeader{ForwardedHeader(headerForwarded)},
		HostHeaders:     []string{headerForwarded},
		PortHeaders:     []string{headerForwarded},
		ProtocolHeaders: []ProtocolHeader{{Name: headerForwarded}},
		TrustedHeaders:  []string{headerForwarded},
	})
}
