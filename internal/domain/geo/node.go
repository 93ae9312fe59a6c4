package geo

// Level identifies a node's position in the administrative hierarchy,
// ordered from district (coarsest) down to village / urban local body.
type Level string

const (
	LevelDistrict Level = "district"
	LevelAssembly Level = "assembly"
	LevelBlock    Level = "block"
	LevelVillage  Level = "village"
	LevelULB      Level = "ulb"
)

// depth orders levels for specificity comparison. Village and ULB are both
// leaves; a ULB hangs directly under its district.
func (l Level) depth() int {
	switch l {
	case LevelDistrict:
		return 0
	case LevelAssembly:
		return 1
	case LevelBlock:
		return 2
	case LevelVillage, LevelULB:
		return 3
	}
	return -1
}

func (l Level) Valid() bool {
	return l.depth() >= 0
}

// Node is one administrative unit. IsUrban is derived from the node type:
// a ULB is always urban, a village always rural.
type Node struct {
	ID      uint64
	Type    Level
	Name    string
	Code    string
	IsUrban bool
}

// Path is an ordered chain of nodes from district down to the most specific
// resolved level. Paths sharing a prefix describe the same ancestors.
type Path []Node

func (p Path) District() (Node, bool) {
	if len(p) == 0 {
		return Node{}, false
	}
	return p[0], true
}

// Leaf returns the most specific node of the path.
func (p Path) Leaf() (Node, bool) {
	if len(p) == 0 {
		return Node{}, false
	}
	return p[len(p)-1], true
}

// At returns the node at the given level, if the path reaches it.
func (p Path) At(level Level) (Node, bool) {
	for _, node := range p {
		if node.Type == level {
			return node, true
		}
		// Leaf levels are interchangeable positions in the chain.
		if level == LevelVillage && node.Type == LevelULB {
			return node, true
		}
	}
	return Node{}, false
}

// String renders the path as "district > ... > leaf" for audit output.
func (p Path) String() string {
	out := ""
	for i, node := range p {
		if i > 0 {
			out += " > "
		}
		out += node.Name
	}
	return out
}
