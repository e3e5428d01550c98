package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_user_slot_planned"})

	if !IsUniqueViolation(err) {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(err, "uq_doctor_slot_planned", "uq_user_slot_planned") {
		t.Error("expected match on listed constraint")
	}
	if IsUniqueViolation(err, "uq_doctor_slot_planned") {
		t.Error("expected no match on other constraint")
	}
	if IsForeignKeyViolation(err) {
		t.Error("unique violation is not a foreign key violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "appointments_doctor_id_fkey"}
	if !IsForeignKeyViolation(err, "appointments_doctor_id_fkey") {
		t.Error("expected foreign key violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("plain error is not a pg error")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to be not found")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("expected other error not to be not found")
	}
}
