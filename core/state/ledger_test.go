package state

import (
	"errors"
	"math"
	"testing"
)

func TestCreditDebit(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit("alice", 1, BucketAvailable, 40); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := l.Get("alice", 1).Available; got != 60 {
		t.Fatalf("available = %d, want 60", got)
	}
}

func TestDebitInsufficientIsAtomic(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := l.Debit("alice", 1, BucketAvailable, 11)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := l.Get("alice", 1).Available; got != 10 {
		t.Fatalf("balance changed on failed debit: %d", got)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, -1); !errors.Is(err, ErrAmountRange) {
		t.Fatalf("credit err = %v, want ErrAmountRange", err)
	}
	if err := l.Debit("alice", 1, BucketAvailable, -1); !errors.Is(err, ErrAmountRange) {
		t.Fatalf("debit err = %v, want ErrAmountRange", err)
	}
	if err := l.Move("alice", 1, BucketAvailable, BucketReserved, -1); !errors.Is(err, ErrAmountRange) {
		t.Fatalf("move err = %v, want ErrAmountRange", err)
	}
}

func TestCreditOverflowRejected(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, math.MaxInt64); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit("alice", 1, BucketAvailable, 1); !errors.Is(err, ErrAmountRange) {
		t.Fatalf("overflow err = %v, want ErrAmountRange", err)
	}
	if got := l.Get("alice", 1).Available; got != math.MaxInt64 {
		t.Fatalf("balance changed on failed credit: %d", got)
	}
}

func TestMoveBetweenBuckets(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Move("alice", 1, BucketAvailable, BucketReserved, 30); err != nil {
		t.Fatalf("move: %v", err)
	}
	bal := l.Get("alice", 1)
	if bal.Available != 70 || bal.Reserved != 30 {
		t.Fatalf("balance = %+v", bal)
	}
	if bal.Total() != 100 {
		t.Fatalf("total = %d, want 100", bal.Total())
	}
	if err := l.Move("alice", 1, BucketReserved, BucketAvailable, 31); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over-move err = %v", err)
	}
}

func TestEmptyEntriesPruned(t *testing.T) {
	l := NewLedger()
	if err := l.Credit("alice", 1, BucketAvailable, 5); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit("alice", 1, BucketAvailable, 5); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := len(l.Addresses()); got != 0 {
		t.Fatalf("addresses after full debit = %d, want 0", got)
	}
	if got := len(l.PropertiesOwned("alice")); got != 0 {
		t.Fatalf("properties after full debit = %d, want 0", got)
	}
}

func TestHoldersAndTotals(t *testing.T) {
	l := NewLedger()
	for addr, amount := range map[string]int64{"carol": 10, "alice": 50, "bob": 40} {
		if err := l.Credit(addr, 7, BucketAvailable, amount); err != nil {
			t.Fatalf("credit %s: %v", addr, err)
		}
	}
	// Reserved and frozen balances count toward the holding total.
	if err := l.Move("alice", 7, BucketAvailable, BucketFrozen, 20); err != nil {
		t.Fatalf("move: %v", err)
	}

	holders, totals := l.Holders(7)
	want := []string{"alice", "bob", "carol"}
	if len(holders) != len(want) {
		t.Fatalf("holders = %v", holders)
	}
	for i, addr := range want {
		if holders[i] != addr {
			t.Fatalf("holders[%d] = %s, want %s", i, holders[i], addr)
		}
	}
	if totals["alice"] != 50 {
		t.Fatalf("alice total = %d, want 50", totals["alice"])
	}
	if got := l.TotalOf(7); got != 100 {
		t.Fatalf("total of property = %d, want 100", got)
	}
}

func TestForEachSortedOrder(t *testing.T) {
	l := NewLedger()
	pairs := []struct {
		addr string
		prop uint32
	}{
		{"bob", 2}, {"alice", 9}, {"alice", 1}, {"bob", 1},
	}
	for _, p := range pairs {
		if err := l.Credit(p.addr, p.prop, BucketAvailable, 1); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	var visited []struct {
		addr string
		prop uint32
	}
	l.ForEachSorted(func(address string, propertyID uint32, bal Balance) {
		visited = append(visited, struct {
			addr string
			prop uint32
		}{address, propertyID})
	})

	want := []struct {
		addr string
		prop uint32
	}{
		{"alice", 1}, {"alice", 9}, {"bob", 1}, {"bob", 2},
	}
	if len(visited) != len(want) {
		t.Fatalf("visited %d entries, want %d", len(visited), len(want))
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visit[%d] = %+v, want %+v", i, visited[i], want[i])
		}
	}
}
