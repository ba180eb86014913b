// Package audiocodec converts uploaded audio bytes to persistable references
// and back.
//
// Durable references are base64 data URLs carrying a MIME marker; they are
// the only form written to storage for assets expected to survive a restart.
// A Registry issues ephemeral blob: handles for same-session playback when a
// durable write was not possible. Encoding is byte-transparent: whether the
// bytes are real audio is only learned when the playback adapter decodes them.
package audiocodec
