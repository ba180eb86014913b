// Package keyspace maps requests to the storage keys they may live under.
//
// A raw key is classified once into a CellRequest or an EventRequest.
// Generator.Aliases is the small set written on upload; Generator.Expand is
// the ordered search list tried on lookup. Both depend only on the request
// and the active voice Variant.
package keyspace
