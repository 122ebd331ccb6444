package proxytrust

import (
	"net/http"
	"strings"
)

// protocolRule is the compiled form of one ProtocolHeader: canonical header
// name and a lowercased scheme table, or a custom resolver.
type protocolRule struct {
	header   string
	schemes  []SchemeValues
	resolver SchemeResolver
}

// compileProtocolRules validates protocol header rules at registration time.
// All violations are programmer errors and fail construction; none are
// deferred to request time.
func compileProtocolRules(headers []ProtocolHeader) ([]protocolRule, error) {
	rules := make([]protocolRule, 0, len(headers))

	for _, ph := range headers {
		if strings.TrimSpace(ph.Name) == "" {
			return nil, &ProtocolRuleError{Err: ErrEmptyHeaderName, Header: ph.Name}
		}

		rule := protocolRule{header: canonicalHeaderName(ph.Name)}

		if ph.Resolver != nil {
			if ph.Schemes != nil {
				return nil, &ProtocolRuleError{Err: ErrConflictingProtocolRule, Header: ph.Name}
			}
			rule.resolver = ph.Resolver
			rules = append(rules, rule)
			continue
		}

		schemes := ph.Schemes
		if schemes == nil {
			schemes = defaultSchemeValues()
		}

		if len(schemes) == 0 {
			return nil, &ProtocolRuleError{Err: ErrNoSchemeValues, Header: ph.Name}
		}

		compiled := make([]SchemeValues, 0, len(schemes))
		for _, sv := range schemes {
			if strings.TrimSpace(sv.Scheme) == "" {
				return nil, &ProtocolRuleError{Err: ErrEmptySchemeKey, Header: ph.Name}
			}
			if len(sv.Values) == 0 {
				return nil, &ProtocolRuleError{Err: ErrNoSchemeValues, Header: ph.Name, Scheme: sv.Scheme}
			}

			values := make([]string, len(sv.Values))
			for i, v := range sv.Values {
				if strings.TrimSpace(v) == "" {
					return nil, &ProtocolRuleError{Err: ErrEmptySchemeValue, Header: ph.Name, Scheme: sv.Scheme}
				}
				values[i] = strings.ToLower(strings.TrimSpace(v))
			}

			compiled = append(compiled, SchemeValues{Scheme: sv.Scheme, Values: values})
		}

		rule.schemes = compiled
		rules = append(rules, rule)
	}

	return rules, nil
}

// matchScheme looks up one raw header value in the rule's scheme table.
// Scheme keys are checked in insertion order; the first accepted value wins.
func (r protocolRule) matchScheme(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}

	for _, sv := range r.schemes {
		for _, accepted := range sv.Values {
			if accepted == value {
				return sv.Scheme, true
			}
		}
	}

	return "", false
}

// resolve evaluates the rule against header values already read from the
// request. Static tables consult only the first raw value; custom resolvers
// receive all of them.
func (r protocolRule) resolve(values []string, req *http.Request) (string, error) {
	if len(values) == 0 {
		return "", nil
	}

	if r.resolver != nil {
		scheme, ok := r.resolver.Resolve(values, r.header, req)
		if !ok {
			return "", nil
		}
		if scheme == "" {
			return "", &SchemeResolverError{Err: ErrInvalidScheme, Header: r.header}
		}
		return scheme, nil
	}

	scheme, _ := r.matchScheme(values[0])
	return scheme, nil
}

// ProtocolResolver determines the effective URI scheme for a request from an
// ordered set of header rules. It is the standalone reduction of the trusted
// chain resolver for deployments that only need scheme fixing.
//
// ProtocolResolver instances are safe for concurrent reuse.
type ProtocolResolver struct {
	rules []protocolRule
}

// NewProtocolResolver builds a ProtocolResolver from header rules, validating
// the whole configuration up front.
func NewProtocolResolver(headers ...ProtocolHeader) (*ProtocolResolver, error) {
	rules, err := compileProtocolRules(headers)
	if err != nil {
		return nil, err
	}

	return &ProtocolResolver{rules: rules}, nil
}

// Resolve returns the scheme produced by the first matching rule, or an empty
// string when no rule matches. Headers are evaluated in configuration order;
// absent headers are skipped.
//
// The only possible error is a SchemeResolverError from a caller-supplied
// resolver.
func (p *ProtocolResolver) Resolve(r *http.Request) (string, error) {
	for _, rule := range p.rules {
		scheme, err := rule.resolve(r.Header.Values(rule.header), r)
		if err != nil {
			return "", err
		}
		if scheme != "" {
			return scheme, nil
		}
	}

	return "", nil
}

// Middleware rewrites the request URI scheme before calling next. Nothing
// else about the URI changes; when no rule matches, the request passes
// through untouched.
func (p *ProtocolResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, err := p.Resolve(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if scheme != "" && r.URL != nil && scheme != r.URL.Scheme {
			r2 := r.Clone(r.Context())
			r2.URL.Scheme = scheme
			r = r2
		}

		next.ServeHTTP(w, r)
	})
}
