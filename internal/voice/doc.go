// Package voice is the boundary facade of the audio subsystem: the single
// object upload forms, announcement triggers and management screens talk to.
//
// Open wires the configured backend, the redundant asset store, the
// resolver, the playback adapter, legacy migration and optional cloud sync.
// Lookups and playback report misses as false rather than errors; a caller
// that wants to speak a missing prompt asks FallbackPhrase for the text.
package voice
