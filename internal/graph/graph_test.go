package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/b2b-migrator/internal/types"
)

// fakeResolver marks a fixed set of original ids as already migrated.
type fakeResolver struct {
	migrated map[string]bool
	err      error
}

func (r *fakeResolver) IsMigrated(_ context.Context, originalID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.migrated[originalID], nil
}

func item(originalID string, t types.ArtifactType, refs ...types.EntityRef) Item {
	return Item{
		ArtifactID: uuid.New(),
		Record: &types.CanonicalRecord{
			OriginalID: originalID,
			Type:       t,
			Payload:    map[string]any{},
			References: refs,
		},
	}
}

func ref(t types.ArtifactType, originalID string) types.EntityRef {
	return types.EntityRef{Type: t, OriginalID: originalID}
}

func positions(order []uuid.UUID) map[uuid.UUID]int {
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return pos
}

func TestPlan_DependencyBeforeDependent(t *testing.T) {
	endpoint := item("EP-1", types.TypeEndpoint)
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-1"))
	cert := item("CERT-1", types.TypeCertificate)

	g, err := Build(context.Background(), []Item{partner, endpoint, cert}, nil)
	require.NoError(t, err)

	plan := g.Plan()
	require.Empty(t, plan.Excluded)

	order := plan.Order()
	require.Len(t, order, 3)
	pos := positions(order)
	assert.Less(t, pos[endpoint.ArtifactID], pos[partner.ArtifactID],
		"the endpoint must be pushed strictly before the partner that references it")
}

func TestPlan_Waves(t *testing.T) {
	schema := item("SCH-1", types.TypeSchema)
	mapping := item("MAP-1", types.TypeMap, ref(types.TypeSchema, "SCH-1"))
	endpoint := item("EP-1", types.TypeEndpoint)
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-1"))

	g, err := Build(context.Background(), []Item{schema, mapping, endpoint, partner}, nil)
	require.NoError(t, err)

	plan := g.Plan()
	require.Len(t, plan.Waves, 2)
	assert.Len(t, plan.Waves[0], 2, "schema and endpoint have no prerequisites")
	assert.Len(t, plan.Waves[1], 2, "map and partner wait for the first wave")

	firstWave := map[uuid.UUID]bool{}
	for _, id := range plan.Waves[0] {
		firstWave[id] = true
	}
	assert.True(t, firstWave[schema.ArtifactID])
	assert.True(t, firstWave[endpoint.ArtifactID])
}

func TestPlan_UnresolvedReference(t *testing.T) {
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-MISSING"))
	cert := item("CERT-1", types.TypeCertificate)

	g, err := Build(context.Background(), []Item{partner, cert}, &fakeResolver{})
	require.NoError(t, err)

	plan := g.Plan()
	require.Len(t, plan.Excluded, 1)

	var unresolved *UnresolvedRefError
	require.ErrorAs(t, plan.Excluded[partner.ArtifactID], &unresolved)
	assert.Equal(t, "TP-1", unresolved.OriginalID)
	require.Len(t, unresolved.Refs, 1)
	assert.Equal(t, "EP-MISSING", unresolved.Refs[0].OriginalID)

	// The unrelated certificate is unaffected.
	assert.Equal(t, []uuid.UUID{cert.ArtifactID}, plan.Order())
}

func TestPlan_ReferenceSatisfiedByPriorMigration(t *testing.T) {
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-OLD"))

	resolver := &fakeResolver{migrated: map[string]bool{"EP-OLD": true}}
	g, err := Build(context.Background(), []Item{partner}, resolver)
	require.NoError(t, err)

	plan := g.Plan()
	assert.Empty(t, plan.Excluded, "a reference to an already-migrated artifact needs no edge")
	assert.Len(t, plan.Order(), 1)
}

func TestPlan_CycleFailsAtomically(t *testing.T) {
	// A references B, B references A; C is unrelated.
	a := item("TP-A", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-B"))
	b := item("EP-B", types.TypeEndpoint, ref(types.TypeTradingPartner, "TP-A"))
	c := item("CERT-C", types.TypeCertificate)

	g, err := Build(context.Background(), []Item{a, b, c}, nil)
	require.NoError(t, err)

	plan := g.Plan()
	require.Len(t, plan.Excluded, 2)

	for _, id := range []uuid.UUID{a.ArtifactID, b.ArtifactID} {
		var cycleErr *CycleError
		require.ErrorAs(t, plan.Excluded[id], &cycleErr)
		assert.ElementsMatch(t, []string{"TP-A", "EP-B"}, cycleErr.Members)
	}

	assert.Equal(t, []uuid.UUID{c.ArtifactID}, plan.Order(), "the unrelated artifact still migrates")
}

func TestPlan_DependentOfCycleMemberExcluded(t *testing.T) {
	a := item("A", types.TypeChannel, ref(types.TypeChannel, "B"))
	b := item("B", types.TypeChannel, ref(types.TypeChannel, "A"))
	downstream := item("D", types.TypeEndpoint, ref(types.TypeChannel, "A"))

	g, err := Build(context.Background(), []Item{a, b, downstream}, nil)
	require.NoError(t, err)

	plan := g.Plan()
	require.Len(t, plan.Excluded, 3)

	var unresolved *UnresolvedRefError
	require.ErrorAs(t, plan.Excluded[downstream.ArtifactID], &unresolved,
		"a dependent of a cycle member fails with an unresolved reference, not a cycle error")
	assert.Empty(t, plan.Order())
}

func TestPlan_DeterministicTieBreak(t *testing.T) {
	items := []Item{
		item("CERT-1", types.TypeCertificate),
		item("CERT-2", types.TypeCertificate),
		item("CERT-3", types.TypeCertificate),
	}

	g, err := Build(context.Background(), items, nil)
	require.NoError(t, err)

	first := g.Plan().Order()
	second := g.Plan().Order()
	require.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].String(), first[i].String(), "independent artifacts order by ascending id")
	}
}

func TestPlan_SelfReferenceIgnored(t *testing.T) {
	selfRef := item("TP-1", types.TypeTradingPartner, ref(types.TypeTradingPartner, "TP-1"))

	g, err := Build(context.Background(), []Item{selfRef}, nil)
	require.NoError(t, err)

	plan := g.Plan()
	assert.Empty(t, plan.Excluded)
	assert.Len(t, plan.Order(), 1)
}

func TestBuild_ResolverFailure(t *testing.T) {
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-X"))

	_, err := Build(context.Background(), []Item{partner}, &fakeResolver{err: errors.New("store down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EP-X")
}

func TestGraph_DirectDeps(t *testing.T) {
	endpoint := item("EP-1", types.TypeEndpoint)
	partner := item("TP-1", types.TypeTradingPartner, ref(types.TypeEndpoint, "EP-1"))

	g, err := Build(context.Background(), []Item{endpoint, partner}, nil)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{endpoint.ArtifactID}, g.DirectDeps(partner.ArtifactID))
	assert.Empty(t, g.DirectDeps(endpoint.ArtifactID))
	assert.Equal(t, "EP-1", g.OriginalID(endpoint.ArtifactID))
}
