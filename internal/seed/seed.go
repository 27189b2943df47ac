// Package seed holds the embedded Philippine geography used when live region data is missing.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"agrikonek/internal/domain"
)

//go:embed philippines.yaml
var philippinesYAML []byte

type dataset struct {
	IslandGroups []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"island_groups"`
	Regions []struct {
		Code        string   `yaml:"code"`
		Name        string   `yaml:"name"`
		IslandGroup string   `yaml:"island_group"`
		Priority    string   `yaml:"priority"`
		Provinces   []string `yaml:"provinces"`
	} `yaml:"regions"`
}

// Provider read-only view over the fallback dataset.
// Seed identifiers are prefixed with "seed-" so they can never collide with live UUIDs.
type Provider struct {
	groups    []domain.IslandGroup
	regions   []*domain.Region
	byKey     map[string]*domain.Region // seed id, code (upper case)
	provinces map[string][]*domain.Province
}

// Default parses the embedded philippines.yaml
func Default() (*Provider, error) {
	return Parse(philippinesYAML)
}

// Parse builds a Provider from YAML and checks it for consistency
func Parse(b []byte) (*Provider, error) {
	var ds dataset
	if err := yaml.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse seed dataset: %w", err)
	}

	p := &Provider{
		byKey:     map[string]*domain.Region{},
		provinces: map[string][]*domain.Province{},
	}
	known := map[string]bool{}
	for _, g := range ds.IslandGroups {
		if g.ID == "" || known[g.ID] {
			return nil, fmt.Errorf("seed dataset: island group %q missing or duplicated", g.ID)
		}
		known[g.ID] = true
		p.groups = append(p.groups, domain.IslandGroup{ID: g.ID, Name: g.Name})
	}

	var errs []error
	for _, r := range ds.Regions {
		code := strings.ToUpper(strings.TrimSpace(r.Code))
		switch {
		case code == "":
			errs = append(errs, fmt.Errorf("region %q has no code", r.Name))
			continue
		case p.byKey[code] != nil:
			errs = append(errs, fmt.Errorf("region code %q duplicated", code))
			continue
		case !known[r.IslandGroup]:
			errs = append(errs, fmt.Errorf("region %s: unknown island group %q", code, r.IslandGroup))
			continue
		}
		prio := domain.Priority(r.Priority)
		if prio == "" {
			prio = domain.PriorityMedium
		}
		if !prio.Valid() {
			errs = append(errs, fmt.Errorf("region %s: invalid priority %q", code, r.Priority))
			continue
		}

		reg := &domain.Region{
			ID:            "seed-" + strings.ToLower(code),
			Code:          code,
			Name:          r.Name,
			IslandGroupID: r.IslandGroup,
			Priority:      prio,
		}
		p.regions = append(p.regions, reg)
		p.byKey[code] = reg
		p.byKey[reg.ID] = reg

		for i, name := range r.Provinces {
			p.provinces[code] = append(p.provinces[code], &domain.Province{
				ID:       fmt.Sprintf("%s-%02d", reg.ID, i+1),
				Name:     name,
				RegionID: reg.ID,
				Status:   domain.ProvinceActive,
			})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("seed dataset: %w", err)
	}
	return p, nil
}

func (p *Provider) IslandGroups() []domain.IslandGroup {
	return append([]domain.IslandGroup{}, p.groups...)
}

func (p *Provider) Regions() []*domain.Region {
	return copyRegions(p.regions, func(*domain.Region) bool { return true })
}

func (p *Provider) RegionsByIslandGroup(islandGroupID string) []*domain.Region {
	return copyRegions(p.regions, func(r *domain.Region) bool { return r.IslandGroupID == islandGroupID })
}

// Region looks up by seed id or region code
func (p *Provider) Region(key string) (*domain.Region, bool) {
	r, ok := p.byKey[strings.ToUpper(key)]
	if !ok {
		r, ok = p.byKey[key]
	}
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// ProvincesByCode provinces of the region with that code (or seed id)
func (p *Provider) ProvincesByCode(key string) []*domain.Province {
	r, ok := p.Region(key)
	if !ok {
		return []*domain.Province{}
	}
	out := make([]*domain.Province, 0, len(p.provinces[r.Code]))
	for _, pr := range p.provinces[r.Code] {
		cp := *pr
		out = append(out, &cp)
	}
	return out
}

// Stats counts for operator checks
func (p *Provider) Stats() (groups, regions, provinces int) {
	for _, list := range p.provinces {
		provinces += len(list)
	}
	return len(p.groups), len(p.regions), provinces
}

func copyRegions(in []*domain.Region, keep func(*domain.Region) bool) []*domain.Region {
	out := []*domain.Region{}
	for _, r := range in {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
