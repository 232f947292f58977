package importjob

import (
	"testing"
	"time"
)

func TestGrouperDetectsDuplicateRows(t *testing.T) {
	g := NewGrouper(testConfig().Import)

	jane := Identity{FirstName: "Jane", LastName: "Doe", DateOfBirth: datePtr(1980, 1, 15)}
	bob := Identity{FirstName: "Bob", LastName: "Jones", DateOfBirth: datePtr(1990, 5, 2)}

	if _, _, dup := g.Check(1, jane); dup {
		t.Error("first row can never be a duplicate")
	}
	if _, _, dup := g.Check(2, bob); dup {
		t.Error("distinct identity flagged as duplicate")
	}

	dupOf, groupID, dup := g.Check(3, jane)
	if !dup {
		t.Fatal("repeated identity not flagged as duplicate")
	}
	if dupOf != 1 {
		t.Errorf("dupOf = %d, want representative row 1", dupOf)
	}
	if groupID == 0 {
		t.Error("duplicate must carry a group id")
	}
}

func TestGrouperFuzzyVariantJoinsGroup(t *testing.T) {
	g := NewGrouper(testConfig().Import)

	dob := time.Date(1975, 6, 1, 0, 0, 0, 0, time.UTC)
	g.Check(1, Identity{FirstName: "John", LastName: "Smith", DateOfBirth: &dob})

	// Near-identical spelling with the same birth date scores above
	// confirm, so it groups with row 1.
	dupOf, _, dup := g.Check(2, Identity{FirstName: "Jon", LastName: "Smith", DateOfBirth: &dob})
	if !dup {
		t.Fatal("fuzzy variant with matching DOB should join the group")
	}
	if dupOf != 1 {
		t.Errorf("dupOf = %d, want 1", dupOf)
	}
}

func TestGrouperThreeMemberGroup(t *testing.T) {
	g := NewGrouper(testConfig().Import)

	jane := Identity{FirstName: "Jane", LastName: "Doe", DateOfBirth: datePtr(1980, 1, 15)}
	g.Check(1, jane)
	g.Check(2, Identity{FirstName: "Bob", LastName: "Jones", DateOfBirth: datePtr(1990, 5, 2)})
	g.Check(3, jane)
	g.Check(4, jane)

	groups := g.Groups()
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	group := groups[0]
	if group.RepresentativeRow != 1 {
		t.Errorf("RepresentativeRow = %d, want 1", group.RepresentativeRow)
	}
	if len(group.MemberRows) != 3 {
		t.Errorf("MemberRows = %v, want rows 1, 3 and 4", group.MemberRows)
	}
}

func TestGrouperNameOnlyDoesNotGroup(t *testing.T) {
	g := NewGrouper(testConfig().Import)

	// Name alone scores 0.5, below the confirm threshold.
	g.Check(1, Identity{FirstName: "Jane", LastName: "Doe"})
	if _, _, dup := g.Check(2, Identity{FirstName: "Jane", LastName: "Doe"}); dup {
		t.Error("a sub-confirm signature must not form a group")
	}
}
