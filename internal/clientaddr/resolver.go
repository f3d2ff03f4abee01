package clientaddr

import (
	"net"
	"net/http"
	"strings"
)

// Header names read by the resolver.
const (
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
)

// Source names reported in a Resolution.
const (
	SourceNative         = "native"
	SourceXForwardedFor  = "x_forwarded_for"
	SourceXRealIP        = "x_real_ip"
	SourceCFConnectingIP = "cf_connecting_ip"
	SourceRemoteAddr     = "remote_addr"
	SourceFallback       = "fallback"
)

// Loopback is returned when no source yields an address.
const Loopback = "127.0.0.1"

// NativeResolver is the first, proxy-aware step. It reports false when it
// has nothing to offer for r.
type NativeResolver interface {
	NativeAddr(r *http.Request) (string, bool)
}

// NativeResolverFunc adapts a function to NativeResolver.
type NativeResolverFunc func(r *http.Request) (string, bool)

func (f NativeResolverFunc) NativeAddr(r *http.Request) (string, bool) {
	return f(r)
}

// Recorder observes which source won each resolution.
type Recorder interface {
	RecordResolution(source string)
}

// Resolution is a resolved address and the source that produced it.
type Resolution struct {
	IP     string
	Source string
}

// Resolver picks the best-guess client address for a request.
type Resolver struct {
	native      NativeResolver
	recorder    Recorder
	headerSteps bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNative installs the proxy-aware first step.
func WithNative(n NativeResolver) Option {
	return func(r *Resolver) {
		r.native = n
	}
}

// WithRecorder reports every resolution to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

// WithHeaderSources enables or disables the X-Forwarded-For, X-Real-IP and
// CF-Connecting-IP steps. They are enabled by default.
func WithHeaderSources(enabled bool) Option {
	return func(r *Resolver) {
		r.headerSteps = enabled
	}
}

// New returns a Resolver. Without options it reads the three headers and
// the remote address.
func New(opts ...Option) *Resolver {
	r := &Resolver{headerSteps: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = New()

// Resolve returns the client address of req using the headers and remote
// address only.
func Resolve(req *http.Request) string {
	return defaultResolver.ResolveAddr(req)
}

// ResolveAddr returns only the address of Resolve.
func (r *Resolver) ResolveAddr(req *http.Request) string {
	return r.Resolve(req).IP
}

// Resolve walks the sources in priority order. The returned IP is never empty.
func (r *Resolver) Resolve(req *http.Request) Resolution {
	res := r.resolve(req)
	if r.recorder != nil {
		r.recorder.RecordResolution(res.Source)
	}
	return res
}

func (r *Resolver) resolve(req *http.Request) Resolution {
	if req == nil {
		return Resolution{IP: Loopback, Source: SourceFallback}
	}

	if r.native != nil {
		if ip, ok := r.native.NativeAddr(req); ok && ip != "" {
			return Resolution{IP: ip, Source: SourceNative}
		}
	}

	if r.headerSteps {
		for _, h := range headerSources {
			if ip := firstHeaderValue(req.Header, h.header); ip != "" {
				return Resolution{IP: ip, Source: h.source}
			}
		}
	}

	if ip := remoteHost(req.RemoteAddr); ip != "" {
		return Resolution{IP: ip, Source: SourceRemoteAddr}
	}

	return Resolution{IP: Loopback, Source: SourceFallback}
}

var headerSources = []struct {
	header string
	source string
}{
	{HeaderXForwardedFor, SourceXForwardedFor},
	{HeaderXRealIP, SourceXRealIP},
	{HeaderCFConnectingIP, SourceCFConnectingIP},
}

// firstHeaderValue returns the first element of the first line of name.
func firstHeaderValue(h http.Header, name string) string {
	values := h.Values(name)
	if len(values) == 0 {
		return ""
	}
	first, _, _ := strings.Cut(values[0], ",")
	return strings.TrimSpace(first)
}

// remoteHost strips the port from a host:port remote address. Values that
// are not host:port are returned unchanged; a bare ":port" yields "".
func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
