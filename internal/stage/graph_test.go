package stage

import "testing"

func TestBuild_Canonical(t *testing.T) {
	g, err := Build(Canonical)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g) != len(Canonical) {
		t.Errorf("graph has %d nodes, want %d", len(g), len(Canonical))
	}
}

func TestBuild_EmptySequence(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error for empty sequence")
	}
}

func TestBuild_MustStartAtDraft(t *testing.T) {
	// Releases are created at Draft; a graph without a Draft node would
	// strand them with no valid transition, not even force-archive.
	if _, err := Build([]Stage{Signal, Drop, Archived}); err == nil {
		t.Error("expected error for sequence not starting at Draft")
	}
	if _, err := Build([]Stage{Archived}); err == nil {
		t.Error("expected error for terminal-only sequence")
	}
}

func TestBuild_MustEndAtArchived(t *testing.T) {
	if _, err := Build([]Stage{Draft, Scheduled, Drop}); err == nil {
		t.Fatal("expected error for sequence not ending at Archived")
	}
}

func TestBuild_DuplicateStage(t *testing.T) {
	if _, err := Build([]Stage{Draft, Drop, Drop, Archived}); err == nil {
		t.Fatal("expected error for duplicate stage")
	}
}

func TestBuild_UnknownStage(t *testing.T) {
	if _, err := Build([]Stage{Draft, Stage("Limbo"), Archived}); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

// Every edge in the default graph is either the forward edge to the next
// canonical stage or the force-archive edge. No stage reaches anything else.
func TestDefault_EdgesExact(t *testing.T) {
	g := Default()

	for i, s := range Canonical {
		next := g.Next(s)
		if s == Archived {
			if len(next) != 0 {
				t.Errorf("Archived has outgoing edges: %v", next)
			}
			continue
		}

		forward := Canonical[i+1]
		want := []Stage{forward, Archived}
		if forward == Archived {
			want = []Stage{Archived}
		}

		if len(next) != len(want) {
			t.Errorf("%s successors = %v, want %v", s, next, want)
			continue
		}
		for j := range want {
			if next[j] != want[j] {
				t.Errorf("%s successors = %v, want %v", s, next, want)
				break
			}
		}
	}
}

func TestDefault_EveryNonTerminalCanForceArchive(t *testing.T) {
	g := Default()
	for _, s := range Canonical {
		if s == Archived {
			continue
		}
		if !g.IsValidTransition(s, Archived) {
			t.Errorf("%s cannot force-archive", s)
		}
	}
}

func TestIsValidTransition_SelfNeverValid(t *testing.T) {
	g := Default()
	for _, s := range Canonical {
		if g.IsValidTransition(s, s) {
			t.Errorf("self-transition allowed for %s", s)
		}
	}
}

func TestIsValidTransition_UnknownFrom(t *testing.T) {
	g := Default()
	if g.IsValidTransition(Stage("Corrupted"), Scheduled) {
		t.Error("unknown from stage treated as valid")
	}
}

func TestIsValidTransition_SkippingForwardInvalid(t *testing.T) {
	g := Default()
	if g.IsValidTransition(Scheduled, Drop) {
		t.Error("Scheduled → Drop should be invalid")
	}
	if !g.IsValidTransition(Scheduled, Signal) {
		t.Error("Scheduled → Signal should be valid")
	}
}

func TestIsValidTransition_NoBackwardEdges(t *testing.T) {
	g := Default()
	if g.IsValidTransition(Drop, Hold) {
		t.Error("backward transition Drop → Hold should be invalid")
	}
	if g.IsValidTransition(Archived, Draft) {
		t.Error("Archived must be terminal")
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("Drop"); err != nil {
		t.Errorf("Parse(Drop): %v", err)
	}
	if _, err := Parse("NotAStage"); err == nil {
		t.Error("expected error for unknown stage name")
	}
	if Valid("Echo") != true {
		t.Error("Valid(Echo) = false")
	}
}

func TestBuild_SubsequenceGraph(t *testing.T) {
	g, err := Build([]Stage{Draft, Scheduled, Drop, Archive, Archived})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !g.IsValidTransition(Scheduled, Drop) {
		t.Error("subsequence forward edge missing")
	}
	if g.IsValidTransition(Scheduled, Signal) {
		t.Error("Signal is not in this template; edge must not exist")
	}
	if !g.IsValidTransition(Draft, Archived) {
		t.Error("force-archive edge missing in subsequence graph")
	}
}
