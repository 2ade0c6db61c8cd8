package mempool_test

import (
	"testing"

	"github.com/ardanlabs/peerledger/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestCRUD(t *testing.T) {
	type table struct {
		name     string
		payloads []string
		remove   int
		next     string
	}

	tt := []table{
		{
			name:     "basic",
			payloads: []string{"first", "second", "third"},
			remove:   -1,
			next:     "first",
		},
		{
			name:     "remove-oldest",
			payloads: []string{"first", "second", "third"},
			remove:   0,
			next:     "second",
		},
		{
			name:     "duplicate-payloads",
			payloads: []string{"same", "same"},
			remove:   1,
			next:     "same",
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of payloads.", testID)
			{
				f := func(t *testing.T) {
					mp := mempool.New()

					var entries []mempool.Entry
					for i, payload := range tst.payloads {
						entry, n := mp.Upsert(payload)
						if n != i+1 {
							t.Fatalf("\t%s\tTest %d:\tShould grow the pool: got %d, exp %d", failed, testID, n, i+1)
						}
						entries = append(entries, entry)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to add payloads.", success, testID)

					exp := len(tst.payloads)
					if tst.remove >= 0 {
						mp.Delete(entries[tst.remove].ID)
						exp--
					}

					if mp.Count() != exp {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, mp.Count())
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, exp)
						t.Fatalf("\t%s\tTest %d:\tShould have the right count.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould have the right count.", success, testID)

					next, found := mp.PickNext()
					if !found || next.Payload != tst.next {
						t.Logf("\t%s\tTest %d:\tgot: %q", failed, testID, next.Payload)
						t.Logf("\t%s\tTest %d:\texp: %q", failed, testID, tst.next)
						t.Fatalf("\t%s\tTest %d:\tShould pick the oldest payload.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould pick the oldest payload.", success, testID)

					cpy := mp.Copy()
					if len(cpy) != exp || cpy[0].ID != next.ID {
						t.Fatalf("\t%s\tTest %d:\tShould copy in received order.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould copy in received order.", success, testID)

					mp.Truncate()
					if _, found := mp.PickNext(); found || mp.Count() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be empty after truncate.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be empty after truncate.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestTake(t *testing.T) {
	t.Log("Given the need to hand each payload to a single miner.")
	{
		mp := mempool.New()
		first, _ := mp.Upsert("first")
		mp.Upsert("second")

		taken, found := mp.Take()
		if !found || taken.ID != first.ID {
			t.Fatalf("\t%s\tShould take the oldest payload: got %q", failed, taken.Payload)
		}
		if mp.Count() != 1 {
			t.Fatalf("\t%s\tShould remove the taken payload: got %d", failed, mp.Count())
		}
		t.Logf("\t%s\tShould take the oldest payload out of the pool.", success)

		next, _ := mp.Take()
		if next.Payload != "second" {
			t.Fatalf("\t%s\tShould hand the next payload to the next taker: got %q", failed, next.Payload)
		}
		if _, found := mp.Take(); found {
			t.Fatalf("\t%s\tShould have nothing left to take.", failed)
		}
		t.Logf("\t%s\tShould never hand out the same payload twice.", success)

		mp.Upsert("third")
		if n := mp.Restore(taken); n != 2 {
			t.Fatalf("\t%s\tShould grow the pool on restore: got %d", failed, n)
		}
		if next, _ := mp.PickNext(); next.ID != taken.ID {
			t.Fatalf("\t%s\tShould restore the payload to its place in line: got %q", failed, next.Payload)
		}
		t.Logf("\t%s\tShould restore the payload to its place in line.", success)
	}
}
