package entity

import "testing"

func TestSameTupleIgnoresCaseOnPlatformAndType(t *testing.T) {
	a := Identity{Platform: "GitHub", Type: "Username", Value: "alice"}
	b := Identity{Platform: "github", Type: "username", Value: "alice"}
	if !a.SameTuple(b) {
		t.Fatal("expected tuples to match")
	}
}

func TestSameTupleValueIsCaseSensitive(t *testing.T) {
	a := Identity{Platform: "github", Type: "username", Value: "Alice"}
	b := Identity{Platform: "github", Type: "username", Value: "alice"}
	if a.SameTuple(b) {
		t.Fatal("values differing in case are distinct identities")
	}
}

func TestTupleKeyStableAcrossVerifiedFlag(t *testing.T) {
	a := Identity{Platform: "github", Type: "username", Value: "alice", Verified: true}
	b := Identity{Platform: "github", Type: "username", Value: "alice", Verified: false}
	if a.TupleKey() != b.TupleKey() {
		t.Fatal("verified flag must not affect the tuple key")
	}
}
