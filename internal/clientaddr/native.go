package clientaddr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/abczzz13/clientip"
)

// TrustedProxyResolver is a NativeResolver backed by a clientip.Extractor.
// It only yields an address when the immediate peer is one of the trusted
// proxies and the forwarded chain validates.
type TrustedProxyResolver struct {
	extractor *clientip.Extractor
}

// NewTrustedProxyResolver builds a native resolver trusting the given proxy
// prefixes. Security warnings are written to logger; metrics may be nil.
func NewTrustedProxyResolver(prefixes []netip.Prefix, logger *slog.Logger, metrics clientip.Metrics) (*TrustedProxyResolver, error) {
	if len(prefixes) == 0 {
		return nil, errors.New("at least one trusted proxy prefix is required")
	}

	opts := []clientip.Option{
		clientip.TrustProxyPrefixes(prefixes...),
		clientip.Priority(clientip.SourceXForwardedFor, clientip.SourceXRealIP),
	}
	if logger != nil {
		opts = append(opts, clientip.WithLogger(logger))
	}
	if metrics != nil {
		opts = append(opts, clientip.WithMetrics(metrics))
	}

	extractor, err := clientip.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build trusted proxy extractor: %w", err)
	}
	return &TrustedProxyResolver{extractor: extractor}, nil
}

// NativeAddr implements NativeResolver. Any extraction error means "no
// native answer" and resolution continues with the raw sources.
func (t *TrustedProxyResolver) NativeAddr(r *http.Request) (string, bool) {
	addr, err := t.extractor.ExtractAddr(r)
	if err != nil || !addr.IsValid() {
		return "", false
	}
	return addr.String(), true
}

// ParsePrefixes parses CIDRs and bare addresses into prefixes. A bare
// address becomes a single-host prefix.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if addr, err := netip.ParseAddr(v); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		parsed, err := clientip.ParseCIDRs(v)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, parsed...)
	}
	return prefixes, nil
}
