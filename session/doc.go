// Package session provides core.SessionStore implementations: a volatile
// in-memory map and a SQLite backed store for runs that must survive a
// restart. Callers depend on core.SessionStore and pick a backend at wiring
// time.
package session
