// Package domain models the municipal snow-removal data served by the
// information site.
//
// # Districts
//
// The city is divided into twelve fixed snow-removal service areas. Their
// names are Japanese strings and their order is significant: the site lists
// them, and labels area selections, in exactly the order returned by
// Districts. Area names arriving from clients are validated by exact string
// match against this list; no normalization (width folding, trimming of the
// 地区 suffix) is applied.
//
// # Snow reports
//
// A SnowReport records one completed snow-clearing operation: the district
// that was cleared and the start and end of the work window. Start and end
// are kept as the text the client submitted so they round-trip unchanged,
// but they must parse with one of the accepted layouts:
//
//	2024-01-15T06:30:00+09:00   RFC 3339
//	2024-01-15T06:30            HTML datetime-local
//	2024-01-15 06:30
//	2024-01-15 06:30:05
//
// Layouts without a zone are read as Japan Standard Time. The end of the
// window may equal, but not precede, the start.
//
// CreatedAt is optional in the record shape. Reports created through this
// service always carry it; it is stamped from the package clock.
package domain
