// Package backend provides the key-value stores that hold serialized
// namespaces: a directory of files, SQLite, Redis, and process memory.
//
// A backend knows nothing about assets. It stores whole namespace values
// and reports ErrQuotaExceeded when a write does not fit, which is what
// drives eviction one layer up.
package backend
