package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agrikonek/internal/domain"
)

// MemoryOrganizationsRepo organizations and membership when DB is disabled
type MemoryOrganizationsRepo struct {
	db *MemoryDB
}

func NewMemoryOrganizationsRepo(db *MemoryDB) *MemoryOrganizationsRepo {
	return &MemoryOrganizationsRepo{db: db}
}

var _ OrganizationsRepository = (*MemoryOrganizationsRepo)(nil)

func copyOrg(o *domain.Organization) *domain.Organization {
	cp := *o
	return &cp
}

func (r *MemoryOrganizationsRepo) GetOrganization(_ context.Context, orgID string) (*domain.Organization, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	o, ok := r.db.orgs[orgID]
	if !ok {
		return nil, notFound("get organization")
	}
	return copyOrg(o), nil
}

func (r *MemoryOrganizationsRepo) ListOrganizations(_ context.Context, f domain.OrganizationFilter) ([]*domain.Organization, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	search := strings.ToLower(f.Search)
	out := []*domain.Organization{}
	for _, o := range r.db.orgs {
		if f.RegionID != "" && o.RegionID != f.RegionID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(o.Name), search) &&
			!strings.Contains(strings.ToLower(o.RegistrationNumber), search) {
			continue
		}
		out = append(out, copyOrg(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryOrganizationsRepo) CreateOrganization(_ context.Context, org *domain.Organization) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.regions[org.RegionID]; !ok {
		return constraint("create organization", "unknown region %q", org.RegionID)
	}
	if org.ProvinceID != nil {
		if _, ok := r.db.provinces[*org.ProvinceID]; !ok {
			return constraint("create organization", "unknown province %q", *org.ProvinceID)
		}
	}
	if org.Status == "" {
		org.Status = domain.OrgPending
	}
	if org.VerificationStatus == "" {
		org.VerificationStatus = domain.VerificationUnverified
	}
	now := r.db.now()
	org.ID = newID()
	org.CreatedAt, org.UpdatedAt = now, now
	r.db.orgs[org.ID] = copyOrg(org)

	orgID := org.ID
	conv := &domain.Conversation{ID: newID(), Kind: domain.ConversationOrganization, OrganizationID: &orgID, CreatedAt: now}
	r.db.conversations[conv.ID] = conv
	return nil
}

func (r *MemoryOrganizationsRepo) UpdateOrganization(_ context.Context, orgID string, u domain.OrganizationUpdate) (*domain.Organization, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	o, ok := r.db.orgs[orgID]
	if !ok {
		return nil, notFound("update organization")
	}
	if u.Empty() {
		return copyOrg(o), nil
	}
	if u.ProvinceID != nil && *u.ProvinceID != "" {
		if _, ok := r.db.provinces[*u.ProvinceID]; !ok {
			return nil, constraint("update organization", "unknown province %q", *u.ProvinceID)
		}
	}
	if u.Name != nil {
		o.Name = *u.Name
	}
	if u.ProvinceID != nil {
		o.ProvinceID = nil
		if *u.ProvinceID != "" {
			p := *u.ProvinceID
			o.ProvinceID = &p
		}
	}
	if u.RegistrationNumber != nil {
		o.RegistrationNumber = *u.RegistrationNumber
	}
	if u.Address != nil {
		o.Address = *u.Address
	}
	if u.ContactPerson != nil {
		o.ContactPerson = *u.ContactPerson
	}
	if u.ContactEmail != nil {
		o.ContactEmail = *u.ContactEmail
	}
	if u.ContactPhone != nil {
		o.ContactPhone = *u.ContactPhone
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.VerificationStatus != nil {
		o.VerificationStatus = *u.VerificationStatus
	}
	o.UpdatedAt = r.db.now()
	return copyOrg(o), nil
}

func (r *MemoryOrganizationsRepo) DeleteOrganization(_ context.Context, orgID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	if _, ok := m.orgs[orgID]; !ok {
		return notFound("delete organization")
	}
	for k, a := range m.admins {
		if a.OrganizationID == orgID {
			delete(m.admins, k)
		}
	}
	for k, mem := range m.members {
		if mem.OrganizationID == orgID {
			delete(m.members, k)
		}
	}
	// cascades of the organizations row
	for k, b := range m.orgBudgets {
		if b.OrganizationID == orgID {
			delete(m.orgBudgets, k)
		}
	}
	kept := m.expenses[:0]
	for _, e := range m.expenses {
		if e.OrganizationID != orgID {
			kept = append(kept, e)
		}
	}
	m.expenses = kept
	for k, req := range m.requests {
		if req.OrganizationID == orgID {
			delete(m.requests, k)
		}
	}
	for k, c := range m.conversations {
		if c.OrganizationID != nil && *c.OrganizationID == orgID {
			delete(m.conversations, k)
			m.dropMessagesLocked(k)
		}
	}
	for _, p := range m.profiles {
		if p.OrganizationID != nil && *p.OrganizationID == orgID {
			p.OrganizationID = nil
		}
	}
	for _, f := range m.farmers {
		if f.OrganizationID != nil && *f.OrganizationID == orgID {
			f.OrganizationID = nil
		}
	}
	delete(m.orgs, orgID)
	return nil
}

func (m *MemoryDB) dropMessagesLocked(conversationID string) {
	kept := m.messages[:0]
	for _, mm := range m.messages {
		if mm.msg.ConversationID != conversationID {
			kept = append(kept, mm)
		}
	}
	m.messages = kept
	for k := range m.reads {
		if strings.HasPrefix(k, conversationID+"|") {
			delete(m.reads, k)
		}
	}
}

func (r *MemoryOrganizationsRepo) AssignAdmin(_ context.Context, orgID, userID string) (*domain.OrganizationAdmin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.orgs[orgID]; !ok {
		return nil, constraint("assign admin", "unknown organization %q", orgID)
	}
	if _, ok := r.db.profiles[userID]; !ok {
		return nil, constraint("assign admin", "unknown user %q", userID)
	}
	for _, a := range r.db.admins {
		if a.OrganizationID == orgID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	a := &domain.OrganizationAdmin{ID: newID(), OrganizationID: orgID, UserID: userID, CreatedAt: r.db.now()}
	r.db.admins[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *MemoryOrganizationsRepo) ListAdmins(_ context.Context, orgID string) ([]*domain.OrganizationAdmin, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.OrganizationAdmin{}
	for _, a := range r.db.admins {
		if a.OrganizationID == orgID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryOrganizationsRepo) GetOrganizationByAdmin(_ context.Context, userID string) (*domain.Organization, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var first *domain.OrganizationAdmin
	for _, a := range r.db.admins {
		if a.UserID == userID && (first == nil || a.CreatedAt.Before(first.CreatedAt)) {
			first = a
		}
	}
	if first == nil {
		return nil, notFound("get organization by admin")
	}
	return copyOrg(r.db.orgs[first.OrganizationID]), nil
}

func (r *MemoryOrganizationsRepo) IsAdmin(_ context.Context, orgID, userID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.isAdminLocked(orgID, userID), nil
}

func (m *MemoryDB) isAdminLocked(orgID, userID string) bool {
	for _, a := range m.admins {
		if a.OrganizationID == orgID && a.UserID == userID {
			return true
		}
	}
	return false
}

func copyMember(mem *domain.OrganizationMember) *domain.OrganizationMember {
	cp := *mem
	return &cp
}

func (r *MemoryOrganizationsRepo) CreateApplication(_ context.Context, mem *domain.OrganizationMember) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.farmers[mem.FarmerID]; !ok {
		return constraint("create application", "unknown farmer %q", mem.FarmerID)
	}
	if _, ok := r.db.orgs[mem.OrganizationID]; !ok {
		return constraint("create application", "unknown organization %q", mem.OrganizationID)
	}
	for _, other := range r.db.members {
		if other.FarmerID == mem.FarmerID && other.OrganizationID == mem.OrganizationID &&
			(other.Status == domain.MemberPending || other.Status == domain.MemberActive) {
			return constraint("create application", "open application exists")
		}
	}
	if mem.Role == "" {
		mem.Role = "member"
	}
	now := r.db.now()
	mem.ID = newID()
	mem.Status = domain.MemberPending
	mem.JoinDate = nil
	mem.CreatedAt, mem.UpdatedAt = now, now
	r.db.members[mem.ID] = copyMember(mem)
	return nil
}

func (r *MemoryOrganizationsRepo) GetMember(_ context.Context, memberID string) (*domain.OrganizationMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	mem, ok := r.db.members[memberID]
	if !ok {
		return nil, notFound("get member")
	}
	return copyMember(mem), nil
}

func (r *MemoryOrganizationsRepo) ListMembers(_ context.Context, orgID string, status domain.MemberStatus) ([]*domain.OrganizationMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.OrganizationMember{}
	for _, mem := range r.db.members {
		if mem.OrganizationID == orgID && (status == "" || mem.Status == status) {
			out = append(out, copyMember(mem))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryDB) farmerByUserLocked(userID string) *domain.FarmerProfile {
	for _, f := range m.farmers {
		if f.UserID == userID {
			return f
		}
	}
	return nil
}

func (m *MemoryDB) activeMembershipLocked(userID, orgID string) *domain.OrganizationMember {
	f := m.farmerByUserLocked(userID)
	if f == nil {
		return nil
	}
	var best *domain.OrganizationMember
	for _, mem := range m.members {
		if mem.FarmerID != f.ID || mem.Status != domain.MemberActive {
			continue
		}
		if orgID != "" && mem.OrganizationID != orgID {
			continue
		}
		if best == nil || (mem.JoinDate != nil && best.JoinDate != nil && mem.JoinDate.After(*best.JoinDate)) {
			best = mem
		}
	}
	return best
}

func (r *MemoryOrganizationsRepo) ActiveMembership(_ context.Context, userID string) (*domain.OrganizationMember, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	mem := r.db.activeMembershipLocked(userID, "")
	if mem == nil {
		return nil, notFound("active membership")
	}
	return copyMember(mem), nil
}

func (r *MemoryOrganizationsRepo) IsActiveMember(_ context.Context, orgID, userID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.activeMembershipLocked(userID, orgID) != nil, nil
}

func (r *MemoryOrganizationsRepo) DecideApplication(_ context.Context, d MemberDecision) (*MemberDecisionResult, error) {
	if d.Target != domain.MemberActive && d.Target != domain.MemberRejected {
		return nil, fmt.Errorf("decide application: target %q: %w", d.Target, domain.ErrInvalidArgument)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	mem, ok := m.members[d.MemberID]
	if !ok {
		return nil, notFound("decide application")
	}
	farmer := m.farmers[mem.FarmerID]
	org := m.orgs[mem.OrganizationID]
	res := &MemberDecisionResult{FarmerUserID: farmer.UserID}

	if mem.Status == d.Target {
		res.Member, res.Organization = copyMember(mem), copyOrg(org)
		return res, nil
	}
	if mem.Status != domain.MemberPending {
		return nil, fmt.Errorf("decide application: %s -> %s: %w", mem.Status, d.Target, domain.ErrInvalidTransition)
	}

	now := m.now()
	mem.Status = d.Target
	mem.UpdatedAt = now
	if d.Target == domain.MemberActive {
		mem.JoinDate = &now
		org.MemberCount++
		org.UpdatedAt = now
		orgID := org.ID
		if p, ok := m.profiles[farmer.UserID]; ok {
			p.OrganizationID = &orgID
		}
		farmer.OrganizationID = &orgID
		farmer.UpdatedAt = now
	}
	res.Member, res.Organization = copyMember(mem), copyOrg(org)

	if d.Notice != nil {
		if n := d.Notice(res.Organization); n != nil {
			n.UserID = farmer.UserID
			res.Notification = m.insertNotificationLocked(*n)
		}
	}
	res.Changed = true
	return res, nil
}
