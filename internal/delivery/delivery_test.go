package delivery

import "testing"

func TestDeliverAndAll(t *testing.T) {
	s := New()
	s.Deliver("10.0.0.1", "hello")
	s.Deliver("10.0.0.2", "world")

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	all := s.All()
	if all[0].Origin != "10.0.0.1" || all[1].Origin != "10.0.0.2" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestAllReturnsACopy(t *testing.T) {
	s := New()
	s.Deliver("10.0.0.1", "hello")
	all := s.All()
	all[0].Payload = "mutated"

	if s.All()[0].Payload != "hello" {
		t.Fatalf("internal state was mutated through the returned slice")
	}
}
