package services

import "database/sql"

// Querier is satisfied by both *sql.DB and *sql.Tx so lookups can run
// inside or outside an explicit transaction.
type Querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}
