// Package clientaddr determines the originating IP address of an HTTP request.
//
// Sources are consulted in a fixed order and the first non-empty value wins:
//
//  1. a native, proxy-aware resolver, when one is configured
//  2. the X-Forwarded-For header
//  3. the X-Real-IP header
//  4. the CF-Connecting-IP header
//  5. the connection's remote address
//  6. the loopback address 127.0.0.1
//
// Header values are returned as sent: when a header repeats, only its first
// line is read, and when that line is a comma-separated list, only its first
// element is used. No address validation or normalization is applied to
// header text, so steps 2 to 4 can be spoofed by any client. Deployments
// behind known proxies should configure a native resolver with
// NewTrustedProxyResolver, and may turn the raw header steps off with
// WithHeaderSources(false).
//
// Resolution never fails and holds no state between calls; a Resolver is
// safe for concurrent use.
package clientaddr
