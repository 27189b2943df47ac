package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	groups, regions, provinces := p.Stats()
	assert.Equal(t, 3, groups)
	assert.Equal(t, 17, regions)
	assert.Greater(t, provinces, 70)

	visayas := p.RegionsByIslandGroup("visayas-island")
	require.Len(t, visayas, 3)
	for _, r := range visayas {
		assert.Equal(t, "visayas-island", r.IslandGroupID)
	}

	r, ok := p.Region("iii")
	require.True(t, ok)
	assert.Equal(t, "Central Luzon", r.Name)
	assert.Equal(t, "seed-iii", r.ID)

	byID, ok := p.Region("seed-iii")
	require.True(t, ok)
	assert.Equal(t, r.Code, byID.Code)

	prov := p.ProvincesByCode("III")
	require.NotEmpty(t, prov)
	assert.Equal(t, "Aurora", prov[0].Name)
	assert.Equal(t, "seed-iii", prov[0].RegionID)

	assert.Empty(t, p.ProvincesByCode("XX"))
}

func TestProviderReturnsCopies(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	p.Regions()[0].Name = "changed"
	assert.NotEqual(t, "changed", p.Regions()[0].Name)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown island group", `
island_groups: [{id: luzon-island, name: Luzon}]
regions: [{code: I, name: Ilocos, island_group: nowhere}]`},
		{"duplicate code", `
island_groups: [{id: luzon-island, name: Luzon}]
regions:
  - {code: I, name: Ilocos, island_group: luzon-island}
  - {code: i, name: Again, island_group: luzon-island}`},
		{"bad priority", `
island_groups: [{id: luzon-island, name: Luzon}]
regions: [{code: I, name: Ilocos, island_group: luzon-island, priority: urgent}]`},
		{"not yaml", `regions: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
