package counters

import "testing"

func TestAddRemoveCount(t *testing.T) {
	c := New()
	c.Add(P1P1, 3)
	c.Add(Charge, 1)

	if c.Count(P1P1) != 3 {
		t.Fatalf("expected 3 +1/+1, got %d", c.Count(P1P1))
	}
	if removed := c.Remove(P1P1, 5); removed != 3 {
		t.Fatalf("removal caps at available, got %d", removed)
	}
	if c.Has(P1P1) {
		t.Fatal("emptied counter name should be gone")
	}
	if c.Total() != 1 {
		t.Fatalf("expected 1 total, got %d", c.Total())
	}
}

func TestBoostTotals(t *testing.T) {
	c := New()
	c.Add(P1P1, 2)
	c.Add("+0/+2", 1)
	c.Add(M1M1, 1)
	c.Add(Loyalty, 4) // not a boost counter

	power, toughness := c.BoostTotals()
	if power != 1 || toughness != 3 {
		t.Fatalf("expected +1/+3 totals, got %+d/%+d", power, toughness)
	}
}

func TestAnnihilatePairs(t *testing.T) {
	c := New()
	c.Add(P1P1, 3)
	c.Add(M1M1, 2)

	if pairs := c.AnnihilatePairs(); pairs != 2 {
		t.Fatalf("expected 2 pairs removed, got %d", pairs)
	}
	if c.Count(P1P1) != 1 || c.Has(M1M1) {
		t.Fatalf("expected one +1/+1 left, got %v", c.All())
	}
	if c.AnnihilatePairs() != 0 {
		t.Fatal("no pairs remain")
	}
}

func TestBoostName(t *testing.T) {
	if BoostName(1, 1) != "+1/+1" {
		t.Fatalf("got %q", BoostName(1, 1))
	}
	if BoostName(-2, 0) != "-2/+0" {
		t.Fatalf("got %q", BoostName(-2, 0))
	}
}

func TestCopyIsIndependent(t *testing.T) {
	c := New()
	c.Add(Poison, 2)

	cpy := c.Copy()
	cpy.Add(Poison, 8)

	if c.Count(Poison) != 2 {
		t.Fatal("copy must not alias the original")
	}
}
