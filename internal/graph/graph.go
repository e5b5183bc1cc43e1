// Package graph derives the migration ordering for a batch of canonical records.
//
// An edge A -> B means "A references B, therefore B must be migrated before A."
// References that resolve to an already-migrated artifact outside the batch are
// satisfied and produce no edge; references resolvable in neither set are
// recorded as unresolved and surfaced at planning time.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// Item pairs an artifact id with its canonical record.
type Item struct {
	ArtifactID uuid.UUID
	Record     *types.CanonicalRecord
}

// Resolver answers whether a source-system id has already been migrated
// outside the current batch.
type Resolver interface {
	IsMigrated(ctx context.Context, originalID string) (bool, error)
}

// UnresolvedRefError reports references that resolve neither within the batch
// nor to an already-migrated artifact.
type UnresolvedRefError struct {
	OriginalID string
	Refs       []types.EntityRef
}

func (e *UnresolvedRefError) Error() string {
	refs := make([]string, len(e.Refs))
	for i, ref := range e.Refs {
		refs[i] = fmt.Sprintf("%s %s", ref.Type, ref.OriginalID)
	}
	return fmt.Sprintf("unresolved references for %s: %s", e.OriginalID, strings.Join(refs, ", "))
}

// CycleError reports a set of records whose references form a cycle.
// No member of the cycle may be migrated; the cycle fails as a whole.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular references between: %s", strings.Join(e.Members, ", "))
}

type node struct {
	artifactID uuid.UUID
	originalID string
	deps       []uuid.UUID
	depRefs    map[uuid.UUID]types.EntityRef
	unresolved []types.EntityRef
}

// Graph is the directed reference graph over one batch.
type Graph struct {
	nodes map[uuid.UUID]*node
	// ids holds every node id in ascending order, the deterministic
	// iteration base for planning.
	ids []uuid.UUID
}

// Build constructs the reference graph for a batch. References are resolved
// first against the batch itself, then through the resolver against artifacts
// migrated earlier; a resolver storage failure aborts the build.
func Build(ctx context.Context, items []Item, resolver Resolver) (*Graph, error) {
	byOriginalID := make(map[string]uuid.UUID, len(items))
	for _, item := range items {
		if item.Record.OriginalID != "" {
			byOriginalID[item.Record.OriginalID] = item.ArtifactID
		}
	}

	g := &Graph{nodes: make(map[uuid.UUID]*node, len(items))}
	for _, item := range items {
		n := &node{
			artifactID: item.ArtifactID,
			originalID: item.Record.OriginalID,
			depRefs:    make(map[uuid.UUID]types.EntityRef),
		}
		for _, ref := range item.Record.References {
			if ref.OriginalID == "" || ref.OriginalID == item.Record.OriginalID {
				continue
			}
			if depID, ok := byOriginalID[ref.OriginalID]; ok {
				n.deps = append(n.deps, depID)
				n.depRefs[depID] = ref
				continue
			}
			if resolver != nil {
				migrated, err := resolver.IsMigrated(ctx, ref.OriginalID)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve reference %s: %w", ref.OriginalID, err)
				}
				if migrated {
					continue
				}
			}
			n.unresolved = append(n.unresolved, ref)
		}
		g.nodes[item.ArtifactID] = n
		g.ids = append(g.ids, item.ArtifactID)
	}

	sortIDs(g.ids)
	return g, nil
}

// DirectDeps returns the intra-batch dependencies of an artifact, the set the
// scheduler consults when deciding whether to short-circuit after a failure.
func (g *Graph) DirectDeps(id uuid.UUID) []uuid.UUID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.deps
}

// OriginalID returns the source-system id behind an artifact id.
func (g *Graph) OriginalID(id uuid.UUID) string {
	if n, ok := g.nodes[id]; ok {
		return n.originalID
	}
	return ""
}

// sortIDs orders artifact ids ascending by their string form, the
// deterministic tie-break used throughout planning.
func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
