package cfg

// LoopDetector classifies which blocks lie on a cycle of the graph. The
// classification depends only on the edge shape, so irreducible loops and
// loops sharing blocks are handled like structured ones.
type LoopDetector struct {
	inLoop []bool
	scc    []int
}

// NewLoopDetector computes the strongly connected components of g once. A
// block is in a loop when its component has more than one block or when
// it has an edge to itself. Entry and exit never are.
func NewLoopDetector(g *Graph) *LoopDetector {
	n := len(g.Blocks)
	d := &LoopDetector{inLoop: make([]bool, n), scc: make([]int, n)}

	// Tarjan, iterative over an explicit frame stack so deep graphs do not
	// exhaust the goroutine stack.
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	var stack []int
	next := 1
	comp := 0

	type frame struct {
		v    int
		edge int
	}
	for root := 0; root < n; root++ {
		if index[root] != 0 {
			continue
		}
		frames := []frame{{v: root}}
		index[root], lowlink[root] = next, next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			succs := g.Successors(g.Blocks[f.v])
			if f.edge < len(succs) {
				w := succs[f.edge].Ordinal
				f.edge++
				switch {
				case index[w] == 0:
					index[w], lowlink[w] = next, next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w})
				case onStack[w]:
					lowlink[f.v] = min(lowlink[f.v], index[w])
				}
				continue
			}

			v := f.v
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				p := frames[len(frames)-1].v
				lowlink[p] = min(lowlink[p], lowlink[v])
			}
			if lowlink[v] != index[v] {
				continue
			}
			var members []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				d.scc[w] = comp
				members = append(members, w)
				if w == v {
					break
				}
			}
			comp++
			if len(members) > 1 {
				for _, m := range members {
					d.inLoop[m] = true
				}
			} else if hasSelfEdge(g, g.Blocks[v]) {
				d.inLoop[v] = true
			}
		}
	}

	d.inLoop[0] = false
	d.inLoop[n-1] = false
	return d
}

func hasSelfEdge(g *Graph, b *Block) bool {
	for _, s := range g.Successors(b) {
		if s == b {
			return true
		}
	}
	return false
}

// IsInLoop reports whether b participates in a cycle.
func (d *LoopDetector) IsInLoop(b *Block) bool {
	return d.inLoop[b.Ordinal]
}

// SameLoop reports whether a and b belong to the same cyclic component.
func (d *LoopDetector) SameLoop(a, b *Block) bool {
	return d.IsInLoop(a) && d.IsInLoop(b) && d.scc[a.Ordinal] == d.scc[b.Ordinal]
}

// LoopBlocks returns the in-loop blocks in ordinal order.
func (d *LoopDetector) LoopBlocks(g *Graph) []*Block {
	var out []*Block
	for i, in := range d.inLoop {
		if in {
			out = append(out, g.Blocks[i])
		}
	}
	return out
}
