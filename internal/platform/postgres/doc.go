// Package postgres implements the storage backend of the store
// abstractions using PostgreSQL: storage-record types, the pure mappers
// between records and domain entities, record-level SQL operations, and
// the schema migrations.
package postgres
