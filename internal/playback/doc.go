// Package playback turns stored assets into sound.
//
// A Player decodes the payload with beep, resamples for the configured
// playback rate, applies a fixed volume, and hands the stream to a Sink.
// Play never fails loudly: any problem is logged and reported as false.
package playback
