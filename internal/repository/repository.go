// Package repository contains the sqlite persistence layer. Methods take an
// optional *sql.Tx so the workflow engine can compose multi-entity writes
// into a single transaction; nil falls back to the shared connection.
package repository

import "database/sql"

// dbtx abstracts over *sql.DB and *sql.Tx
type dbtx interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return db
}
