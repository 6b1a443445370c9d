// Package store defines the persistence abstractions of the application:
// the DBTX query surface, the SessionManager that scopes database
// transactions to one logical operation, and the generic Repository that
// maps domain entities onto storage records. Business rules stay
// independent of the concrete database technology behind these types.
package store
