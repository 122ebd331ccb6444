package proxytrust

import (
	"net/netip"
	"strings"
)

// chainScan is the outcome of turning chain-header values into hops.
//
// Hops are in walk order: server-adjacent element first, end client last,
// which is the reverse of the wire convention. The walk extends trust
// outwards from the server, so a cut chain keeps its server-adjacent end.
type chainScan struct {
	hops []Hop

	// forwarded is set for RFC 7239 scans, whose elements carry structured
	// nodes. Plain IP-list hops stay opaque: an obfuscated-looking token in
	// them is just an unparseable address.
	forwarded bool

	// malformed is set when the scan ended at a corrupt element. Everything
	// farther from the server than that element is discarded, never skipped:
	// the server stops trusting the chain past the first corrupt entry.
	malformed bool

	// capped is set when the scan ended at the configured chain length
	// limit.
	capped bool
}

// forwardedChain scans RFC 7239 Forwarded header values from the
// server-adjacent end. Header values and the elements inside them are
// processed in reverse wire order; the first malformed element or a quoting
// break in a value ends the scan.
func (c *Config) forwardedChain(values []string) chainScan {
	scan := chainScan{hops: make([]Hop, 0, typicalChainCapacity), forwarded: true}

	for v := len(values) - 1; v >= 0; v-- {
		elements, err := splitForwardedValue(values[v])
		if err != nil {
			scan.malformed = true
			return scan
		}

		for i := len(elements) - 1; i >= 0; i-- {
			if len(scan.hops) >= c.maxChainLength {
				scan.capped = true
				return scan
			}

			hop, err := parseForwardedElement(elements[i])
			if err != nil {
				scan.malformed = true
				return scan
			}

			scan.hops = append(scan.hops, hop)
		}
	}

	return scan
}

// plainChain scans plain IP-list header values (X-Forwarded-For style) from
// the server-adjacent end. Each comma token becomes a hop with only the raw
// node; address parsing is deferred to the walk so a garbage token truncates
// trust there instead of being skipped.
func (c *Config) plainChain(values []string) chainScan {
	scan := chainScan{hops: make([]Hop, 0, typicalChainCapacity)}

	for v := len(values) - 1; v >= 0; v-- {
		parts := strings.Split(values[v], ",")
		for i := len(parts) - 1; i >= 0; i-- {
			token := strings.TrimSpace(parts[i])
			if token == "" {
				continue
			}

			if len(scan.hops) >= c.maxChainLength {
				scan.capped = true
				return scan
			}

			scan.hops = append(scan.hops, Hop{Node: token})
		}
	}

	return scan
}

// walkChain walks the hop list front-to-back, starting from the synthetic
// peer hop, and extends trust while each hop's address stays inside the
// matched entry's host set.
//
// The walk advances on every accepted hop. It ends at the first hop whose
// address falls outside the entry's hosts (that hop is the real client), at
// the first hop with no recoverable address, or when the chain runs out. The
// returned client hop is the last accepted one.
func (r *Resolver) walkChain(entry *compiledEntry, peer netip.Addr, scan chainScan) (Hop, []Hop) {
	walk := make([]Hop, 0, len(scan.hops)+1)
	walk = append(walk, Hop{IP: peer, Node: peer.String()})
	walk = append(walk, scan.hops...)

	validated := make([]Hop, 0, len(walk))
	client := walk[0]

	for i := 0; i < len(walk); i++ {
		hop := walk[i]

		if !hop.IP.IsValid() {
			if scan.forwarded && hop.Obfuscated() {
				if ob := r.config.obfuscation; ob != nil {
					if ip, ok := ob.Resolve(hop, validated, walk[i+1:]); ok && ip.IsValid() {
						hop.IP = normalizeIP(ip)
					}
				}
				if !hop.IP.IsValid() {
					r.config.metrics.RecordSecurityEvent(securityEventObfuscatedHop)
				}
			} else {
				hop.IP = parseIP(hop.Node)
				if !hop.IP.IsValid() {
					r.config.metrics.RecordSecurityEvent(securityEventInvalidChainHop)
				}
			}

			if !hop.IP.IsValid() {
				break
			}
		} else {
			hop.IP = normalizeIP(hop.IP)
		}

		validated = append(validated, hop)
		client = hop

		if !entry.matches(hop.IP, r.config.matcher) {
			// Boundary of trust: this hop is the real client, everything
			// behind it is untrusted.
			break
		}
	}

	return client, validated
}
