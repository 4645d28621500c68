package domain

import "testing"

func TestMessageLogAppendDeduplicates(t *testing.T) {
	var l MessageLog
	msgs := []ChatMessage{
		{Body: "hi", SenderID: "u1", Timestamp: 100},
		{Body: "hi again", SenderID: "u1", Timestamp: 100},
		{Body: "yo", SenderID: "u2", Timestamp: 100},
		{Body: "later", SenderID: "u1", Timestamp: 101},
	}
	var added int
	for _, m := range msgs {
		if l.Append(m) {
			added++
		}
	}
	if added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}
	got := l.Snapshot()
	if got[0].Body != "hi" {
		t.Errorf("first body = %q, want the first delivery to win", got[0].Body)
	}
	seen := map[MessageKey]bool{}
	for _, m := range got {
		if seen[m.Key()] {
			t.Fatalf("duplicate key %+v in log", m.Key())
		}
		seen[m.Key()] = true
	}
}

func TestMessageLogRedeliveryIsNoop(t *testing.T) {
	var l MessageLog
	m := ChatMessage{Body: "hi", SenderID: "u1", Timestamp: 100}
	l.Append(m)
	before := l.Snapshot()
	if l.Append(m) {
		t.Fatal("redelivery should not be appended")
	}
	if l.Len() != len(before) {
		t.Fatalf("len = %d, want %d", l.Len(), len(before))
	}
}

func TestMessageLogResetKeepsOrder(t *testing.T) {
	var l MessageLog
	l.Append(ChatMessage{Body: "old", SenderID: "x", Timestamp: 1})
	l.Reset([]ChatMessage{
		{Body: "b", SenderID: "u2", Timestamp: 5},
		{Body: "a", SenderID: "u1", Timestamp: 3},
		{Body: "b", SenderID: "u2", Timestamp: 5},
	})
	got := l.Snapshot()
	if len(got) != 2 || got[0].Body != "b" || got[1].Body != "a" {
		t.Fatalf("unexpected log after reset: %+v", got)
	}
	if !l.Append(ChatMessage{Body: "old", SenderID: "x", Timestamp: 1}) {
		t.Error("reset should forget keys of the previous log")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	var l MessageLog
	l.Append(ChatMessage{Body: "hi", SenderID: "u1", Timestamp: 1})
	s := l.Snapshot()
	s[0].Body = "changed"
	if l.Snapshot()[0].Body != "hi" {
		t.Error("snapshot aliases the log")
	}
}
