// Package project derives an agent/connection graph from a terminal
// orchestration payload for rendering. Like the result normalizer it
// assumes no stable schema: agent definitions may live under the swarm
// spec, or only be inferable from result keys, and edges may be listed
// under either a connections or a flow array.
package project

import (
	"sort"
	"strings"

	"github.com/swarmlink/orchestrate-go/internal/domain"
	"github.com/swarmlink/orchestrate-go/internal/normalize"
)

// Graph projects agent nodes and directed connections from a terminal
// payload. Raw-string payloads and payloads with no agent information
// yield an empty graph, never an error.
func Graph(p normalize.Payload) domain.AgentGraph {
	graph := domain.AgentGraph{
		Nodes:       []domain.AgentNode{},
		Connections: []domain.Connection{},
	}

	obj := p.Object()
	if obj == nil {
		return graph
	}

	graph.Nodes = projectNodes(obj)
	graph.Connections = projectConnections(obj)
	return graph
}

// projectNodes reads swarm_result.swarm_spec.agents when present, and
// otherwise falls back to the keys under results.
func projectNodes(obj map[string]any) []domain.AgentNode {
	if agents, ok := swarmAgents(obj); ok {
		return agents
	}

	results, ok := mapField(obj, "results")
	if !ok {
		return []domain.AgentNode{}
	}
	nodes := make([]domain.AgentNode, 0, len(results))
	for _, name := range sortedKeys(results) {
		nodes = append(nodes, domain.AgentNode{ID: name, Name: name})
	}
	return nodes
}

func swarmAgents(obj map[string]any) ([]domain.AgentNode, bool) {
	swarmResult, ok := mapField(obj, "swarm_result")
	if !ok {
		return nil, false
	}
	spec, ok := mapField(swarmResult, "swarm_spec")
	if !ok {
		return nil, false
	}
	agents, ok := mapField(spec, "agents")
	if !ok || len(agents) == 0 {
		return nil, false
	}

	nodes := make([]domain.AgentNode, 0, len(agents))
	for _, name := range sortedKeys(agents) {
		node := domain.AgentNode{ID: name, Name: name}
		if def, ok := agents[name].(map[string]any); ok {
			if role, ok := def["role"].(string); ok {
				node.Role = role
			} else if desc, ok := def["description"].(string); ok {
				node.Role = desc
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, true
}

// projectConnections reads a connections array, falling back to flow.
// Edges may be {from, to} objects or "a -> b" strings.
func projectConnections(obj map[string]any) []domain.Connection {
	edges := edgeList(obj, "connections")
	if edges == nil {
		if swarmResult, ok := mapField(obj, "swarm_result"); ok {
			edges = edgeList(swarmResult, "connections")
		}
	}
	if edges == nil {
		edges = edgeList(obj, "flow")
	}
	if edges == nil {
		return []domain.Connection{}
	}
	return edges
}

func edgeList(obj map[string]any, field string) []domain.Connection {
	arr, ok := obj[field].([]any)
	if !ok {
		return nil
	}
	conns := make([]domain.Connection, 0, len(arr))
	for _, elem := range arr {
		if conn, ok := parseEdge(elem); ok {
			conns = append(conns, conn)
		}
	}
	return conns
}

func parseEdge(elem any) (domain.Connection, bool) {
	switch e := elem.(type) {
	case map[string]any:
		from, _ := e["from"].(string)
		to, _ := e["to"].(string)
		if from == "" {
			from, _ = e["source"].(string)
		}
		if to == "" {
			to, _ = e["target"].(string)
		}
		if from == "" || to == "" {
			return domain.Connection{}, false
		}
		return domain.Connection{From: from, To: to}, true
	case string:
		return parseArrowEdge(e)
	}
	return domain.Connection{}, false
}

// parseArrowEdge splits a "producer -> consumer" edge string.
func parseArrowEdge(s string) (domain.Connection, bool) {
	from, to, found := strings.Cut(s, "->")
	if !found {
		return domain.Connection{}, false
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return domain.Connection{}, false
	}
	return domain.Connection{From: from, To: to}, true
}

func mapField(obj map[string]any, key string) (map[string]any, bool) {
	m, ok := obj[key].(map[string]any)
	return m, ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
