package repository

import (
	"errors"
	"testing"
	"time"
)

func TestIdempotencyRepositoryClaimCompleteLifecycle(t *testing.T) {
	repo := NewIdempotencyRepository(openRepositoryTestDB(t, "idem_repo_lifecycle"))
	now := time.Now().UTC()

	if err := repo.Claim("reward-creation", "k", "owner-a", now.Add(time.Minute), now); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := repo.Claim("reward-creation", "k", "owner-b", now.Add(time.Minute), now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second claim should be duplicate, got %v", err)
	}
	// 同 key 不同 scope 互不影响
	if err := repo.Claim("reward-reversal", "k", "owner-b", now.Add(time.Minute), now); err != nil {
		t.Fatalf("claim in other scope failed: %v", err)
	}

	ok, err := repo.Complete("reward-creation", "k", "owner-b", []byte(`{"v":1}`), now)
	if err != nil || ok {
		t.Fatalf("non-owner must not complete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Complete("reward-creation", "k", "owner-a", []byte(`{"v":1}`), now)
	if err != nil || !ok {
		t.Fatalf("owner complete failed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Complete("reward-creation", "k", "owner-a", []byte(`{"v":2}`), now)
	if err != nil || ok {
		t.Fatalf("completed record must not be overwritten: ok=%v err=%v", ok, err)
	}
	row, err := repo.Get("reward-creation", "k")
	if err != nil || row == nil {
		t.Fatalf("get failed: row=%v err=%v", row, err)
	}
	if !row.Completed() || string(row.ResultJSON) != `{"v":1}` {
		t.Fatalf("unexpected stored result: %s", string(row.ResultJSON))
	}
	if err := repo.Release("reward-creation", "k", "owner-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if row, _ := repo.Get("reward-creation", "k"); row == nil {
		t.Fatalf("completed record must survive release")
	}
}

func TestIdempotencyRepositoryTakeoverOnlyAfterLease(t *testing.T) {
	repo := NewIdempotencyRepository(openRepositoryTestDB(t, "idem_repo_takeover"))
	now := time.Now().UTC()
	if err := repo.Claim("s", "k", "owner-a", now.Add(time.Minute), now); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	ok, err := repo.Takeover("s", "k", "owner-b", now.Add(2*time.Minute), now)
	if err != nil || ok {
		t.Fatalf("takeover before lease expiry must fail: ok=%v err=%v", ok, err)
	}
	later := now.Add(2 * time.Minute)
	ok, err = repo.Takeover("s", "k", "owner-b", later.Add(time.Minute), later)
	if err != nil || !ok {
		t.Fatalf("takeover after lease expiry failed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Complete("s", "k", "owner-a", []byte(`1`), later)
	if err != nil || ok {
		t.Fatalf("previous owner must lose after takeover: ok=%v err=%v", ok, err)
	}
	if err := repo.Release("s", "k", "owner-b"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if row, _ := repo.Get("s", "k"); row != nil {
		t.Fatalf("released claim should be deleted")
	}
}
