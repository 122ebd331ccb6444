package rdns

import (
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startPTRServer runs a DNS server on a loopback UDP port answering PTR
// queries from the records map (reverse name -> PTR targets).
func startPTRServer(t *testing.T, records map[string][]string, queries *atomic.Int64) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		if queries != nil {
			queries.Add(1)
		}

		resp := new(dns.Msg)
		resp.SetReply(req)

		if len(req.Question) == 1 && req.Question[0].Qtype == dns.TypePTR {
			for _, target := range records[req.Question[0].Name] {
				resp.Answer = append(resp.Answer, &dns.PTR{
					Hdr: dns.RR_Header{
						Name:   req.Question[0].Name,
						Rrtype: dns.TypePTR,
						Class:  dns.ClassINET,
						Ttl:    60,
					},
					Ptr: target,
				})
			}
		}

		if len(resp.Answer) == 0 {
			resp.Rcode = dns.RcodeNameError
		}

		_ = w.WriteMsg(resp)
	})

	server := &dns.Server{PacketConn: pc, Handler: mux}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestMatch_PTRDomainPatterns(t *testing.T) {
	queries := &atomic.Int64{}
	server := startPTRServer(t, map[string][]string{
		"5.48.245.173.in-addr.arpa.": {"edge7.proxies.example.com."},
	}, queries)

	matcher := New(server)
	addr := netip.MustParseAddr("173.245.48.5")

	tests := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"exact name", []string{"edge7.proxies.example.com"}, true},
		{"wildcard", []string{"*.proxies.example.com"}, true},
		{"wildcard apex", []string{"*.example.com"}, true},
		{"other domain", []string{"*.other.example.net"}, false},
		{"negated name wins", []string{"10.0.0.0/8", "173.245.48.0/20", "!edge7.proxies.example.com"}, false},
		{"mixed with cidr", []string{"*.other.example.net", "173.245.48.0/20"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Match(addr, tt.patterns); got != tt.want {
				t.Errorf("Match(%v, %v) = %v, want %v", addr, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestMatch_PrefixPatternsSkipLookup(t *testing.T) {
	queries := &atomic.Int64{}
	server := startPTRServer(t, nil, queries)

	matcher := New(server)
	addr := netip.MustParseAddr("10.1.2.3")

	if !matcher.Match(addr, []string{"10.0.0.0/8"}) {
		t.Fatal("Match() = false for contained prefix")
	}
	if matcher.Match(addr, []string{"!10.1.2.3", "10.0.0.0/8"}) {
		t.Fatal("Match() = true despite negated address")
	}

	if got := queries.Load(); got != 0 {
		t.Errorf("PTR queries = %d, want 0 for address-only patterns", got)
	}
}

func TestMatch_CachesLookups(t *testing.T) {
	queries := &atomic.Int64{}
	server := startPTRServer(t, map[string][]string{
		"5.48.245.173.in-addr.arpa.": {"edge7.proxies.example.com."},
	}, queries)

	matcher := New(server, WithCacheTTL(time.Minute))
	addr := netip.MustParseAddr("173.245.48.5")
	patterns := []string{"*.proxies.example.com"}

	for i := 0; i < 3; i++ {
		if !matcher.Match(addr, patterns) {
			t.Fatalf("Match() = false on attempt %d", i)
		}
	}

	if got := queries.Load(); got != 1 {
		t.Errorf("PTR queries = %d, want 1 with caching", got)
	}
}

func TestMatch_LookupFailureIsNotMatched(t *testing.T) {
	server := startPTRServer(t, nil, nil)

	matcher := New(server, WithTimeout(200*time.Millisecond))
	addr := netip.MustParseAddr("203.0.113.99")

	if matcher.Match(addr, []string{"*.proxies.example.com"}) {
		t.Error("Match() = true for address with no PTR record")
	}
}

func TestMatch_InvalidAddr(t *testing.T) {
	matcher := New("127.0.0.1:53")

	if matcher.Match(netip.Addr{}, []string{"10.0.0.0/8"}) {
		t.Error("Match() = true for invalid address")
	}
}

func TestDomainPatternMatches(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"edge.example.com", "edge.example.com", true},
		{"edge.example.com", "EDGE.example.com", false},
		{"Edge.Example.Com", "edge.example.com", true},
		{"*.example.com", "edge.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "example.com", true},
		{"*.example.com", "notexample.com", false},
		{"example.com", "edge.example.com", false},
		{"example.com.", "example.com", true},
	}

	for _, tt := range tests {
		if got := domainPatternMatches(tt.pattern, tt.name); got != tt.want {
			t.Errorf("domainPatternMatches(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
