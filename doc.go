// Package spotstream turns the reverse beacon network's telnet firehose into
// queryable, filtered spot streams.
//
// # Pipeline
//
// Every feed line moves through a fixed path:
//
//	┌──────────┐    ┌──────────┐    ┌──────────┐    ┌──────────┐
//	│   feed   │ →  │  parser  │ →  │  filter  │ →  │ storage  │
//	│ (telnet) │    │ (spots)  │    │ (match)  │    │ (bounded)│
//	└──────────┘    └──────────┘    └──────────┘    └──────────┘
//	                                     ↑               ↓
//	                                watchlist    gateway / natspub
//
// The feed client owns the connection lifecycle (login, read deadlines,
// reconnect with backoff). The parser recognizes skimmer spot lines and
// rejects everything else cheaply. Filters are immutable predicates built
// from configuration: wildcard callsign patterns, band/mode/type sets,
// SNR/WPM ranges, and externally fetched watchlists. Each matching filter
// stores the spot in its own sequence-numbered queue, bounded per filter by
// entry count and across all filters by a global byte budget.
//
// Stored spots are served three ways: REST retrieval with a sequence
// cursor, a live websocket stream per filter, and optional NATS fan-out.
// Prometheus metrics cover the whole path.
//
// Each concern lives in its own package; cmd/spotstream wires them
// together.
package spotstream
