// Package cloudsync copies recorded assets to S3-compatible object storage
// and back, one folder per device.
//
// Objects are stored as the raw audio file under
// "<device id>/<sanitized key><ext>" with the canonical key and display
// name carried in user metadata. Pulling is additive: aliases already in
// the local store are kept.
package cloudsync
