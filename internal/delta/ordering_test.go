package delta

import (
	"errors"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Test Node Implementation
// -----------------------------------------------------------------------------

// testNode implements DependencyNode for testing.
type testNode struct {
	id   string
	deps []string
}

func (n *testNode) ID() string             { return n.id }
func (n *testNode) Dependencies() []string { return n.deps }

func newNode(id string, deps ...string) *testNode {
	return &testNode{id: id, deps: deps}
}

func getIDs(nodes []*testNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}

func positions(ids []string) map[string]int {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return pos
}

// -----------------------------------------------------------------------------
// TopoSort Tests
// -----------------------------------------------------------------------------

func TestTopoSort_EmptyInput(t *testing.T) {
	result, err := TopoSort([]*testNode{}, false)
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("TopoSort() = %v, want empty", result)
	}
}

func TestTopoSort_LinearChain(t *testing.T) {
	// A -> B -> C (C depends on B, B depends on A)
	nodes := []*testNode{
		newNode("C", "B"),
		newNode("B", "A"),
		newNode("A"),
	}

	result, err := TopoSort(nodes, false)
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}

	pos := positions(getIDs(result))
	if pos["A"] > pos["B"] {
		t.Errorf("TopoSort() A should come before B")
	}
	if pos["B"] > pos["C"] {
		t.Errorf("TopoSort() B should come before C")
	}
}

func TestTopoSort_DiamondDependency(t *testing.T) {
	// Diamond: D depends on B and C, B and C depend on A
	nodes := []*testNode{
		newNode("D", "B", "C"),
		newNode("B", "A"),
		newNode("C", "A"),
		newNode("A"),
	}

	result, err := TopoSort(nodes, false)
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}

	pos := positions(getIDs(result))
	for _, dep := range []string{"B", "C", "D"} {
		if pos["A"] > pos[dep] {
			t.Errorf("TopoSort() A should come before %s", dep)
		}
	}
	if pos["B"] > pos["D"] || pos["C"] > pos["D"] {
		t.Error("TopoSort() B and C should come before D")
	}
}

func TestTopoSort_CircularDependency(t *testing.T) {
	// A -> B -> C -> A (cycle)
	nodes := []*testNode{
		newNode("A", "C"),
		newNode("B", "A"),
		newNode("C", "B"),
	}

	_, err := TopoSort(nodes, false)
	if err == nil {
		t.Fatal("TopoSort() expected error for circular dependency")
	}
	if !errors.Is(err, ErrCircularDependency) {
		t.Errorf("TopoSort() error = %v, want ErrCircularDependency", err)
	}
}

func TestTopoSort_UnresolvedDependencyStrict(t *testing.T) {
	// B depends on X, which is not in the node set.
	nodes := []*testNode{
		newNode("B", "A", "X"),
		newNode("A"),
	}

	_, err := TopoSort(nodes, false)
	if err == nil {
		t.Fatal("TopoSort() expected error for unresolved dependency")
	}
	if !strings.Contains(err.Error(), "unresolved dependency") {
		t.Errorf("TopoSort() error = %v, want unresolved dependency", err)
	}
}

func TestTopoSort_CycleAllowedAppendsMembers(t *testing.T) {
	// A and B depend on each other; C sorts normally. With allowUnresolved
	// the cycle members come back after the sortable nodes, in input order.
	nodes := []*testNode{
		newNode("B", "A"),
		newNode("A", "B"),
		newNode("C"),
	}

	result, err := TopoSort(nodes, true)
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("TopoSort() = %d nodes, want 3", len(result))
	}

	got := getIDs(result)
	want := []string{"C", "B", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopoSort() = %v, want %v", got, want)
		}
	}
}

func TestTopoSort_UnresolvedDependencyAllowed(t *testing.T) {
	// Same graph, but unresolved deps are ignored.
	nodes := []*testNode{
		newNode("B", "A", "X"),
		newNode("A"),
	}

	result, err := TopoSort(nodes, true)
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("TopoSort() = %d nodes, want 2", len(result))
	}

	pos := positions(getIDs(result))
	if pos["A"] > pos["B"] {
		t.Error("TopoSort() A should come before B")
	}
}

func TestTopoSort_DeterministicOrder(t *testing.T) {
	nodes := []*testNode{
		newNode("D", "B", "C"),
		newNode("B", "A"),
		newNode("C", "A"),
		newNode("A"),
	}

	var first []string
	for i := 0; i < 10; i++ {
		result, err := TopoSort(nodes, false)
		if err != nil {
			t.Fatalf("TopoSort() error = %v", err)
		}
		ids := getIDs(result)
		if first == nil {
			first = ids
			continue
		}
		for j := range ids {
			if ids[j] != first[j] {
				t.Fatalf("TopoSort() inconsistent order on iteration %d: got %v, want %v", i, ids, first)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// sortStrings Tests
// -----------------------------------------------------------------------------

func TestSortStrings(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty", []string{}, []string{}},
		{"single", []string{"a"}, []string{"a"}},
		{"reverse", []string{"c", "b", "a"}, []string{"a", "b", "c"}},
		{"duplicates", []string{"b", "a", "b", "a"}, []string{"a", "a", "b", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := make([]string, len(tt.input))
			copy(input, tt.input)

			sortStrings(input)

			for i := range input {
				if input[i] != tt.want[i] {
					t.Errorf("sortStrings()[%d] = %q, want %q", i, input[i], tt.want[i])
				}
			}
		})
	}
}
