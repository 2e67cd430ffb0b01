package timeacct

import "testing"

func TestAdvanceCarriesNanoseconds(t *testing.T) {
	var e Elapsed
	e.Advance(Delay{Sec: 0, Nsec: 700_000_000})
	e.Advance(Delay{Sec: 0, Nsec: 500_000_000})

	want := Elapsed{Sec: 1, Nsec: 200_000_000}
	if e != want {
		t.Fatalf("Advance() = %+v, want %+v", e, want)
	}
}

func TestAdvanceSumMatchesSequence(t *testing.T) {
	delays := []Delay{
		{Sec: 0, Nsec: 500_000_000},
		{Sec: 1, Nsec: 0},
		{Sec: 0, Nsec: 999_999_999},
		{Sec: 0, Nsec: 1},
	}

	var e Elapsed
	for _, d := range delays {
		e.Advance(d)
	}

	want := Elapsed{Sec: 2, Nsec: 500_000_000}
	if e != want {
		t.Fatalf("sum = %+v, want %+v", e, want)
	}
}

func TestCmp(t *testing.T) {
	cases := []struct {
		a, b Elapsed
		want int
	}{
		{Elapsed{1, 0}, Elapsed{1, 0}, 0},
		{Elapsed{1, 0}, Elapsed{2, 0}, -1},
		{Elapsed{2, 0}, Elapsed{1, 0}, 1},
		{Elapsed{1, 100}, Elapsed{1, 200}, -1},
		{Elapsed{1, 200}, Elapsed{1, 100}, 1},
	}
	for _, c := range cases {
		if got := c.a.Cmp(c.b); got != c.want {
			t.Errorf("%+v.Cmp(%+v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestEqualAndExceeds(t *testing.T) {
	a := Elapsed{Sec: 3, Nsec: 500}
	b := Elapsed{Sec: 3, Nsec: 500}
	c := Elapsed{Sec: 3, Nsec: 501}

	if !a.Equal(b) {
		t.Error("expected a.Equal(b)")
	}
	if a.Exceeds(b) {
		t.Error("a should not exceed an equal value")
	}
	if !c.Exceeds(a) {
		t.Error("expected c.Exceeds(a)")
	}
}
