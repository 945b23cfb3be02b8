// Package database provides PostgreSQL connection pool construction for the
// shared session store.
package database
