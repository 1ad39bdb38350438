package mqtt

import (
	"fmt"
	"testing"
)

func topics(msgs []outgoing) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.topic
	}
	return out
}

func TestRingKeepsNewest(t *testing.T) {
	tests := []struct {
		capacity int
		pushed   int
		want     []string
		dropped  int
	}{
		{capacity: 4, pushed: 0, want: nil, dropped: 0},
		{capacity: 4, pushed: 3, want: []string{"m0", "m1", "m2"}, dropped: 0},
		{capacity: 4, pushed: 4, want: []string{"m0", "m1", "m2", "m3"}, dropped: 0},
		{capacity: 4, pushed: 6, want: []string{"m2", "m3", "m4", "m5"}, dropped: 2},
		{capacity: 3, pushed: 10, want: []string{"m7", "m8", "m9"}, dropped: 7},
		{capacity: 0, pushed: 2, want: []string{"m1"}, dropped: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap%d_push%d", tt.capacity, tt.pushed), func(t *testing.T) {
			r := newRing[outgoing](tt.capacity)
			for i := 0; i < tt.pushed; i++ {
				r.add(outgoing{topic: fmt.Sprintf("m%d", i)})
			}
			if r.size() != len(tt.want) {
				t.Errorf("size: got %d, want %d", r.size(), len(tt.want))
			}

			got, dropped := r.take()
			if fmt.Sprint(topics(got)) != fmt.Sprint(tt.want) {
				t.Errorf("take: got %v, want %v", topics(got), tt.want)
			}
			if dropped != tt.dropped {
				t.Errorf("dropped: got %d, want %d", dropped, tt.dropped)
			}
			if r.size() != 0 {
				t.Errorf("size after take: got %d, want 0", r.size())
			}
		})
	}
}

func TestRingFirstDropReportedOncePerTake(t *testing.T) {
	r := newRing[outgoing](2)
	var reports int
	for i := 0; i < 5; i++ {
		if r.add(outgoing{}) {
			reports++
		}
	}
	if reports != 1 {
		t.Fatalf("first-drop reports: got %d, want 1", reports)
	}

	r.take()
	r.add(outgoing{})
	r.add(outgoing{})
	if !r.add(outgoing{}) {
		t.Error("expected a fresh first-drop report after take")
	}
}

func TestRingReusableAfterWrap(t *testing.T) {
	r := newRing[outgoing](3)
	for i := 0; i < 5; i++ {
		r.add(outgoing{topic: "old"})
	}
	r.take()

	r.add(outgoing{topic: TopicLevel})
	r.add(outgoing{topic: TopicDelivery})
	got, dropped := r.take()
	if fmt.Sprint(topics(got)) != fmt.Sprint([]string{TopicLevel, TopicDelivery}) {
		t.Errorf("take: got %v", topics(got))
	}
	if dropped != 0 {
		t.Errorf("dropped: got %d, want 0", dropped)
	}
}

func TestRingPreservesMessageFields(t *testing.T) {
	r := newRing[outgoing](1)
	r.add(outgoing{topic: TopicSystem, payload: []byte(`{"x":1}`), qos: 1, retained: true})

	got, _ := r.take()
	if len(got) != 1 {
		t.Fatalf("len: got %d, want 1", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"x":1}` || m.qos != 1 || !m.retained {
		t.Errorf("message: got %+v", m)
	}
	if r.limit() != 1 {
		t.Errorf("limit: got %d, want 1", r.limit())
	}
}
