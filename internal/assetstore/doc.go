// Package assetstore is the redundant asset store.
//
// The live collection maps alias keys to records and is persisted as one
// JSON object per namespace: the primary plus a declared number of backups.
// Reconciliation unions every copy back into the live collection, so losing
// one namespace loses nothing while any other copy survives. Quota pressure
// evicts the oldest assets first and, when that is not enough, keeps the
// new asset for the current session only and says so.
//
// A few scalar settings (playback rate, voice variant, migration marker,
// device id) live beside the namespaces in the same backend.
package assetstore
