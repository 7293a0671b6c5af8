package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/invprop/internal/ir"
)

// Cycles finds definitions in p that depend on themselves without passing
// through a phi.
//
// Phis are the only values allowed on a def-use cycle: they carry a value
// around a loop backedge. Anything else on a cycle has no well-defined value,
// and the symbolic engine would recurse forever building an expression for it.
//
// The algorithm:
//  1. Build operation → operand edges, skipping phi operands
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop, as a path through it
//
// Nodes are visited in declaration order, so the result is deterministic.
func Cycles(u *ir.Unit, p ir.ProcID) [][]ir.ValueID {
	graph, nodes := buildOperandGraph(u, p)
	var cycles [][]ir.ValueID
	for _, scc := range tarjanSCC(graph, nodes) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, cyclePath(scc, graph))
		}
	}
	return cycles
}

func cycleErrors(u *ir.Unit, p ir.ProcID) []ValidationError {
	var errs []ValidationError
	for _, path := range Cycles(u, p) {
		refs := make([]string, len(path))
		for i, id := range path {
			refs[i] = u.Ref(id)
		}
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("%s.%s", u.Proc(p).Name, refs[0]),
			Message: "cyclic definition: " + strings.Join(refs, " -> "),
			Code:    ErrCyclicDefinition,
		})
	}
	return errs
}

// operandGraph maps an operation to the operations it reads.
type operandGraph map[ir.ValueID][]ir.ValueID

func buildOperandGraph(u *ir.Unit, p ir.ProcID) (operandGraph, []ir.ValueID) {
	graph := make(operandGraph)
	var nodes []ir.ValueID
	for _, b := range u.Proc(p).Blocks {
		for _, id := range u.Block(b).Instrs {
			v := u.Value(id)
			nodes = append(nodes, id)
			if v.Op == ir.OpPhi {
				continue
			}
			for _, a := range v.Args {
				if u.Value(a).IsOperation() {
					graph[id] = append(graph[id], a)
				}
			}
		}
	}
	return graph, nodes
}

func hasSelfLoop(node ir.ValueID, graph operandGraph) bool {
	for _, next := range graph[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph operandGraph, nodes []ir.ValueID) [][]ir.ValueID {
	var (
		index   = 0
		stack   []ir.ValueID
		indices = make(map[ir.ValueID]int)
		lowlink = make(map[ir.ValueID]int)
		onStack = make(map[ir.ValueID]bool)
		sccs    [][]ir.ValueID
	)

	var strongConnect func(ir.ValueID)
	strongConnect = func(v ir.ValueID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []ir.ValueID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks from the earliest-declared member of scc along edges inside
// it until the walk returns to the start. A self-loop yields [v, v].
func cyclePath(scc []ir.ValueID, graph operandGraph) []ir.ValueID {
	start := scc[0]
	members := make(map[ir.ValueID]bool, len(scc))
	for _, v := range scc {
		members[v] = true
		start = min(start, v)
	}

	path := []ir.ValueID{start}
	visited := make(map[ir.ValueID]bool)
	for current := start; ; {
		visited[current] = true
		var next ir.ValueID
		for _, w := range graph[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == ir.NoValue {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
