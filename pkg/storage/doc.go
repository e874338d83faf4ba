// Package storage provides persistence backends for the authentication
// core: an in-memory store for development and tests, and a PostgreSQL
// store in the postgres subpackage.
//
// Both implement auth.Store. Writes are whole-record updates with no
// optimistic-concurrency guard; see the auth package for the consequences.
package storage
