package registry

import (
	"strconv"
	"sync"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register("ST-1", "s1"); err != nil {
		t.Fatal(err)
	}

	if id, ok := r.LookupByTicket("ST-1"); !ok || id != "s1" {
		t.Error("except s1, actual is", id, ok)
	}
	if ticket, ok := r.LookupBySession("s1"); !ok || ticket != "ST-1" {
		t.Error("except ST-1, actual is", ticket, ok)
	}
	if _, ok := r.LookupByTicket("ST-2"); ok {
		t.Error("except ST-2 is absent")
	}
}

func TestRegisterConflictKeepsState(t *testing.T) {
	r := New()
	if err := r.Register("ST-1", "s1"); err != nil {
		t.Fatal(err)
	}

	if err := r.Register("ST-1", "s2"); err != ErrConflict {
		t.Fatal("except ErrConflict, actual is", err)
	}

	if id, _ := r.LookupByTicket("ST-1"); id != "s1" {
		t.Error("ticket was rebound to", id)
	}
	if _, ok := r.LookupBySession("s2"); ok {
		t.Error("s2 must not hold a ticket")
	}
	if r.Len() != 1 {
		t.Error("except 1 entry, actual is", r.Len())
	}
}

func TestRegisterSamePairIsNoop(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		if err := r.Register("ST-1", "s1"); err != nil {
			t.Fatal(err)
		}
	}
	if r.Len() != 1 {
		t.Error("except 1 entry, actual is", r.Len())
	}
}

func TestRegisterNewTicketReplacesOld(t *testing.T) {
	r := New()
	r.Register("ST-1", "s1")
	if err := r.Register("ST-2", "s1"); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.LookupByTicket("ST-1"); ok {
		t.Error("old ticket must be unbound")
	}
	if ticket, _ := r.LookupBySession("s1"); ticket != "ST-2" {
		t.Error("except ST-2, actual is", ticket)
	}

	// the released ticket may be bound again
	if err := r.Register("ST-1", "s2"); err != nil {
		t.Error(err)
	}
}

func TestRegisterEmpty(t *testing.T) {
	r := New()
	if err := r.Register("", "s1"); err == nil {
		t.Error("except error for empty ticket")
	}
	if err := r.Register("ST-1", ""); err == nil {
		t.Error("except error for empty session")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	r.Register("ST-1", "s1")

	if !r.Remove("ST-1") {
		t.Error("except first remove to report an entry")
	}
	if r.Remove("ST-1") {
		t.Error("second remove must be a no-op")
	}
	if r.Remove("ST-never") {
		t.Error("unknown ticket must be a no-op")
	}
	if _, ok := r.LookupBySession("s1"); ok {
		t.Error("reverse index must be cleared")
	}
}

func TestRemoveSession(t *testing.T) {
	r := New()
	r.Register("ST-1", "s1")

	ticket, ok := r.RemoveSession("s1")
	if !ok || ticket != "ST-1" {
		t.Error("except ST-1, actual is", ticket, ok)
	}
	if _, ok := r.LookupByTicket("ST-1"); ok {
		t.Error("forward index must be cleared")
	}
	if _, ok := r.RemoveSession("s1"); ok {
		t.Error("second remove must be a no-op")
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.Register("ST-1", "s1")
	r.Register("ST-2", "s2")
	r.Clear()
	if r.Len() != 0 {
		t.Error("except empty registry")
	}
	if _, ok := r.LookupBySession("s2"); ok {
		t.Error("reverse index must be cleared")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket := "ST-" + strconv.Itoa(i)
			session := "s" + strconv.Itoa(i)
			for j := 0; j < 100; j++ {
				if err := r.Register(ticket, session); err != nil {
					t.Error(err)
					return
				}
				if id, ok := r.LookupByTicket(ticket); !ok || id != session {
					t.Error("except", session, "actual is", id)
					return
				}
				if j%2 == 0 {
					r.Remove(ticket)
				} else {
					r.RemoveSession(session)
				}
			}
		}(i)
	}

	// everybody races for the same ticket; exactly one session wins
	var winners sync.Map
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Register("ST-shared", "c"+strconv.Itoa(i)); err == nil {
				winners.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	winners.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	if count != 1 {
		t.Error("except exactly one winner, actual is", count)
	}
	if r.Len() != 1 {
		t.Error("except only the shared ticket left, actual is", r.Len())
	}
}
