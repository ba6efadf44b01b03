// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver errors itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrAppointmentNotFound is returned when no appointment has the
// requested ID.
var ErrAppointmentNotFound = errors.New("appointment not found")

// ErrDoctorNotFound is returned when no doctor record matches the lookup.
var ErrDoctorNotFound = errors.New("doctor not found")

// MySQL server error numbers the booking path reacts to.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// IsDuplicateKey reports whether err is a unique-constraint violation.
// On the appointments table this means another transaction took the
// same slot between our conflict check and our insert.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// IsRetryable reports whether err aborted the transaction because of
// lock contention, in which case the whole transaction may be replayed.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlockDetected || me.Number == mysqlLockWaitTimeout
}
