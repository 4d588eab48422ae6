// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates the identifiers of every persisted entity.

Identifiers are version 7: time ordered, so B-tree primary key inserts stay
append-mostly in PostgreSQL.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}

	// Convert the UUID to a string
	return id.String()
}

// # Parsing

// Valid reports whether s is a well-formed UUID of any version.
//
// Handlers use it to answer NotFound for garbage ids without a store round trip.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
