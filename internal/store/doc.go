// Package store holds what every corpus.Sink implementation shares: the table
// layouts and the SQL built from them. Implementations live in subpackages;
// this package must not import database drivers.
package store
