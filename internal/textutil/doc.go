// Package textutil provides the text handling shared by key generation and
// fuzzy lookup.
//
// The primary use cases are:
//   - Normalizing keys to NFC so decomposed Cyrillic from file names matches
//   - Unicode case folding for case-insensitive comparison
//   - Tokenizing keys for substring fallback search
//   - Sanitizing object and file names
//
// Tokenization folds case, splits on anything that is not a letter or digit,
// and filters tokens shorter than 3 runes as well as bare numbers.
package textutil
