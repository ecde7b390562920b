package sqlp

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DriverCode returns the driver specific code of err, for logging.
// That's the SQLSTATE for postgres, the error number for mysql, and the extended code for sqlite.
// Empty for anything else.
func DriverCode(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(int(liteErr.ExtendedCode))
	}
	return ""
}

// IsUniqueViolation reports whether err is a duplicate key error, eg. from seeding a row twice.
func IsUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
