package repository

import "testing"

func TestLikeOperatorByDialect(t *testing.T) {
	if got := likeOperatorByDialect("postgres"); got != "ILIKE" {
		t.Fatalf("postgres like operator want ILIKE got %s", got)
	}
	if got := likeOperatorByDialect("sqlite"); got != "LIKE" {
		t.Fatalf("sqlite like operator want LIKE got %s", got)
	}
}

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestSignedAmountExpr(t *testing.T) {
	got := signedAmountExpr("ledger_entries.direction", "ledger_entries.amount")
	want := "CASE WHEN ledger_entries.direction = ? THEN ledger_entries.amount ELSE -ledger_entries.amount END"
	if got != want {
		t.Fatalf("signed amount expr mismatch, want %s got %s", want, got)
	}
}
