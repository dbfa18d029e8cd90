package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error number for duplicate entries on a unique key.
const mysqlDuplicateEntry = 1062

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation reports whether err is a duplicate key error and, if so,
// which key was violated.
func UniqueViolation(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlDuplicateEntry {
		return "", false
	}
	return ExtractDuplicateKeyName(myErr.Message), true
}

// ExtractDuplicateKeyName pulls the key name out of a MySQL duplicate entry
// message, e.g. `Duplicate entry 'job-1' for key 'jobs.PRIMARY'`. The last
// marker wins in case the duplicated value itself contains one.
func ExtractDuplicateKeyName(message string) string {
	const marker = "for key "
	idx := strings.LastIndex(message, marker)
	if idx < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(message[idx+len(marker):]), " `\"'")
}
