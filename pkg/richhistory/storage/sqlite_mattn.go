//go:build cgo

package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// mattnIsFull reports whether err is SQLITE_FULL from the cgo driver.
func mattnIsFull(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrFull
}
