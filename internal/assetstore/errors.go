package assetstore

import "errors"

var (
	// ErrDegraded reports that a put only reached session memory: quota
	// recovery ran out and the asset will not survive a restart.
	ErrDegraded = errors.New("assetstore: stored without durability")
	// ErrClosed is returned by operations after Teardown.
	ErrClosed = errors.New("assetstore: store is closed")
	// ErrNoNamespace reports that no namespace accepted a write.
	ErrNoNamespace = errors.New("assetstore: no namespace accepted the write")
	// ErrEmptyPayload is returned by Put for an asset without audio.
	ErrEmptyPayload = errors.New("assetstore: asset payload is empty")
)
