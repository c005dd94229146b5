//go:build !cgo

package storage

import (
	// Registers a stub "sqlite3" driver that reports cgo is required.
	_ "github.com/mattn/go-sqlite3"
)

func mattnIsFull(error) bool {
	return false
}
