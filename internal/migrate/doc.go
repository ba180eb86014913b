// Package migrate imports audio assets left behind by older storage
// layouts into the current asset store.
//
// Legacy namespaces are read, never modified. Keys are normalized through
// the key-space rules so every imported asset is reachable under the same
// aliases as a fresh upload, and the import is additive: an alias already
// present in the store keeps its current payload. Running the migration
// twice yields the same store as running it once.
package migrate
