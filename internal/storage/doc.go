// Package storage provides persistence for venues and events.
//
// Store is the narrow read/write contract the scrape pipeline and scheduler consume.
// SQLite keeps data in a local database file through mattn/go-sqlite3; Memory keeps
// everything in process and backs tests and dry runs. Seed creates the configured
// venues that are not stored yet.
package storage
