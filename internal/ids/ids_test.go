package ids

import (
	"testing"
	"time"
)

func TestNewIsMonotonicAndValid(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id := New()
		if !Valid(id) {
			t.Fatalf("New returned invalid id %q", id)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "not-a-ulid-not-a-ulid-not-a", "01HZZZZZZZZZZZZZZZZZZZZZZ!"} {
		if Valid(in) {
			t.Fatalf("expected %q to be invalid", in)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, ok := Time(New())
	if !ok {
		t.Fatal("expected time to decode")
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("unexpected embedded time %v", ts)
	}
}
