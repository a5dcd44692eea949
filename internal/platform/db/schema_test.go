package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	sql []string
	err error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	return pgconn.CommandTag{}, r.err
}

func TestEnsureSchema_ExecutesEmbeddedDDL(t *testing.T) {
	ex := &recordingExecer{}
	if err := EnsureSchema(context.Background(), ex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ex.sql) != 1 {
		t.Fatalf("expected one Exec call, got %d", len(ex.sql))
	}
	for _, table := range []string{"patient", "doctor", "medicament", "prescription", "prescription_medicament", "app_user", "refresh_token"} {
		if !strings.Contains(ex.sql[0], "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("expected DDL for table %s", table)
		}
	}
}

func TestEnsureSchema_Constraints(t *testing.T) {
	for _, c := range []string{"patient_identity_key", "app_user_username_key", "refresh_token_token_key", "ON DELETE CASCADE", "ON DELETE RESTRICT", "ADD COLUMN IF NOT EXISTS iterations"} {
		if !strings.Contains(Schema, c) {
			t.Errorf("expected schema to contain %q", c)
		}
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	ex := &recordingExecer{err: errors.New("permission denied")}
	err := EnsureSchema(context.Background(), ex)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ensure schema") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
