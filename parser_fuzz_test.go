package proxytrust

import (
	"strings"
	"testing"
)

func FuzzParseIP_RoundTripNormalization(f *testing.F) {
	for _, seed := range []string{
		"1.1.1.1",
		"  1.1.1.1  ",
		"1.1.1.1:443",
		"[2606:4700:4700::1]:443",
		`"1.1.1.1"`,
		`'1.1.1.1'`,
		"not-an-ip",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		parsed := parseIP(raw)
		if !parsed.IsValid() {
			return
		}

		roundTrip := parseIP(parsed.String())
		if !roundTrip.IsValid() {
			t.Fatalf("round-trip parse invalid for %q (%q)", raw, parsed.String())
		}

		if normalizeIP(parsed) != normalizeIP(roundTrip) {
			t.Fatalf("normalized round-trip mismatch for %q", raw)
		}
	})
}

func FuzzSplitForwardedValue_ElementShape(f *testing.F) {
	for _, seed := range []string{
		"for=1.1.1.1",
		"for=1.1.1.1, for=8.8.8.8",
		"for=1.1.1.1;proto=https, for=8.8.8.8",
		`for="[2606:4700:4700::1]:443"`,
		`for="1.1.1.1, still quoted"`,
		`for="unterminated`,
		`for="1.1.1.1\"edge"`,
		",",
		", ,",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		elements, err := splitForwardedValue(raw)
		if err != nil {
			if elements != nil {
				t.Fatalf("splitForwardedValue(%q) returned elements alongside error %v", raw, err)
			}
			return
		}

		for i, element := range elements {
			if element == "" {
				t.Fatalf("empty element at index %d for %q", i, raw)
			}
			if element != strings.TrimSpace(element) {
				t.Fatalf("untrimmed element at index %d for %q: %q", i, raw, element)
			}
		}
	})
}

func FuzzParseForwardedElement_HopInvariants(f *testing.F) {
	for _, seed := range []string{
		"for=1.1.1.1",
		"for=1.1.1.1:443",
		`for="[2606:4700:4700::1]:443"`,
		"for=unknown",
		"for=unknown:8080",
		"for=_hidden:_port",
		"for=1.1.1.1;proto=https;host=example.com;by=2.2.2.2",
		"For=1.1.1.1;Proto=HTTPS",
		"proto=https",
		"for=1.1.1.1;for=2.2.2.2",
		"for=1.1.1.1:badport",
		"for=1.1.1.1:123456",
		"for",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		hop, err := parseForwardedElement(raw)
		if err != nil {
			if hop != (Hop{}) {
				t.Fatalf("parseForwardedElement(%q) returned hop alongside error %v", raw, err)
			}
			return
		}

		if hop.Node == "" {
			t.Fatalf("parsed hop has empty node for %q", raw)
		}

		if hop.IP.IsValid() == hop.Obfuscated() {
			t.Fatalf("hop from %q must carry an address exactly when not obfuscated (ip=%v, node=%q)",
				raw, hop.IP, hop.Node)
		}

		if hop.IP.IsValid() && hop.Port != "" && !isNumeric(hop.Port) {
			t.Fatalf("literal-host hop from %q kept non-numeric port %q", raw, hop.Port)
		}
	})
}

func FuzzForwardedChain_WalkOrderBounds(f *testing.F) {
	cfg, err := configFromOptions(MaxChainLength(16))
	if err != nil {
		f.Fatalf("configFromOptions() error = %v", err)
	}

	for _, seed := range []string{
		"for=1.1.1.1, for=8.8.8.8",
		"for=1.1.1.1, garbage, for=8.8.8.8",
		`for="broken`,
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		valueSets := [][]string{
			{raw},
			{raw, raw},
			{"for=1.1.1.1", raw},
			{raw, "for=8.8.8.8"},
		}

		for _, values := range valueSets {
			scan := cfg.forwardedChain(values)

			if len(scan.hops) > cfg.maxChainLength {
				t.Fatalf("hops length = %d, max = %d", len(scan.hops), cfg.maxChainLength)
			}

			for i, hop := range scan.hops {
				if hop.Node == "" {
					t.Fatalf("empty hop node at index %d for %#v", i, values)
				}
			}
		}
	})
}
