// Package main hosts the pvzvoice CLI entrypoint and command graph.
//
// The Cobra-based command tree opens the voice service for each invocation
// and surfaces its operations: uploading recordings, playing and resolving
// keys, listing and removing assets, reconciliation, legacy migration,
// persisted settings, cloud sync and configuration scaffolding.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
