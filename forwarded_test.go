package proxytrust

import (
	"net/netip"
	"testing"
)

func TestParseForwardedElement(t *testing.T) {
	tests := []struct {
		name    string
		element string
		want    Hop
		wantErr bool
	}{
		{
			name:    "plain IPv4",
			element: "for=192.0.2.60",
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60"},
		},
		{
			name:    "IPv4 with port",
			element: "for=192.0.2.60:8080",
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60", Port: "8080"},
		},
		{
			name:    "full element",
			element: "for=192.0.2.60;proto=http;by=203.0.113.43;host=example.com",
			want: Hop{
				IP:    netip.MustParseAddr("192.0.2.60"),
				Node:  "192.0.2.60",
				Proto: "http",
				By:    "203.0.113.43",
				Host:  "example.com",
			},
		},
		{
			name:    "quoted bracketed IPv6 with port",
			element: `for="[2001:db8::1]:8080"`,
			want:    Hop{IP: netip.MustParseAddr("2001:db8::1"), Node: "2001:db8::1", Port: "8080"},
		},
		{
			name:    "bracketed IPv6 without port",
			element: `for="[2001:db8::1]"`,
			want:    Hop{IP: netip.MustParseAddr("2001:db8::1"), Node: "2001:db8::1"},
		},
		{
			name:    "unknown token",
			element: "for=unknown",
			want:    Hop{Node: "unknown"},
		},
		{
			name:    "unknown token with port",
			element: "for=unknown:8080",
			want:    Hop{Node: "unknown", Port: "8080"},
		},
		{
			name:    "unknown token keeps opaque port",
			element: `for="unknown:_obfport"`,
			want:    Hop{Node: "unknown", Port: "_obfport"},
		},
		{
			name:    "obfuscated token",
			element: "for=_hidden",
			want:    Hop{Node: "_hidden"},
		},
		{
			name:    "obfuscated token keeps opaque port",
			element: `for="_hidden:_obfport"`,
			want:    Hop{Node: "_hidden", Port: "_obfport"},
		},
		{
			name:    "parameter names case-insensitive",
			element: "FOR=192.0.2.60;PROTO=HTTPS",
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60", Proto: "HTTPS"},
		},
		{
			name:    "host failing domain syntax is dropped, element kept",
			element: "for=192.0.2.60;host=bad_host_",
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60"},
		},
		{
			name:    "out-of-range numeric port dropped, element kept",
			element: `for="192.0.2.60:123456"`,
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60"},
		},
		{
			name:    "missing for parameter",
			element: "proto=https;by=203.0.113.43",
			wantErr: true,
		},
		{
			name:    "duplicate for parameter",
			element: "for=192.0.2.60;for=192.0.2.61",
			wantErr: true,
		},
		{
			name:    "unbracketed IPv6",
			element: "for=2001:db8::1",
			wantErr: true,
		},
		{
			name:    "non-numeric port on literal host",
			element: `for="192.0.2.60:abc"`,
			wantErr: true,
		},
		{
			name:    "port zero on literal host dropped like out-of-range",
			element: "for=192.0.2.60:0",
			want:    Hop{IP: netip.MustParseAddr("192.0.2.60"), Node: "192.0.2.60"},
		},
		{
			name:    "domain node",
			element: "for=proxy.example.com",
			wantErr: true,
		},
		{
			name:    "negation syntax",
			element: "for=!5.5.5.5/32",
			wantErr: true,
		},
		{
			name:    "CIDR syntax",
			element: "for=5.5.5.5/11",
			wantErr: true,
		},
		{
			name:    "empty parameter value",
			element: "for=",
			wantErr: true,
		},
		{
			name:    "parameter without equals",
			element: "for",
			wantErr: true,
		},
		{
			name:    "unterminated bracket",
			element: "for=[2001:db8::1",
			wantErr: true,
		},
		{
			name:    "garbage after bracket",
			element: "for=[2001:db8::1]x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForwardedElement(tt.element)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseForwardedElement(%q) = %+v, want error", tt.element, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseForwardedElement(%q) error = %v", tt.element, err)
			}

			if got != tt.want {
				t.Errorf("parseForwardedElement(%q) = %+v, want %+v", tt.element, got, tt.want)
			}
		})
	}
}

func TestSplitForwardedValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []string
		wantErr bool
	}{
		{
			name:  "single element",
			value: "for=192.0.2.60;proto=http",
			want:  []string{"for=192.0.2.60;proto=http"},
		},
		{
			name:  "multiple elements",
			value: "for=192.0.2.43, for=198.51.100.17",
			want:  []string{"for=192.0.2.43", "for=198.51.100.17"},
		},
		{
			name:  "comma inside quoted value",
			value: `for="a,b", for=192.0.2.43`,
			want:  []string{`for="a,b"`, "for=192.0.2.43"},
		},
		{
			name:  "empty segments ignored",
			value: "for=192.0.2.43, , for=198.51.100.17",
			want:  []string{"for=192.0.2.43", "for=198.51.100.17"},
		},
		{
			name:    "unterminated quote poisons whole value",
			value:   `for=192.0.2.43, for="broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitForwardedValue(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("splitForwardedValue(%q) = %v, want error", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitForwardedValue(%q) error = %v", tt.value, err)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("splitForwardedValue(%q) = %v, want %v", tt.value, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitForwardedValue(%q)[%d] = %q, want %q", tt.value, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUnquoteForwardedValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "simple", value: `"abc"`, want: "abc"},
		{name: "escaped quote", value: `"a\"b"`, want: `a"b`},
		{name: "escaped backslash", value: `"a\\b"`, want: `a\b`},
		{name: "missing closing quote", value: `"abc`, wantErr: true},
		{name: "bare quote inside", value: `"a"b"`, wantErr: true},
		{name: "too short", value: `"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unquoteForwardedValue(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("unquoteForwardedValue(%q) = %q, want error", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unquoteForwardedValue(%q) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("unquoteForwardedValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
