// Package resolver maps a requested key to a stored asset through an
// ordered chain of strategies: exact key, generated aliases, then the
// token and keyword fuzzy fallbacks. Each strategy can be switched off on
// its own.
package resolver
