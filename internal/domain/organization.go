package domain

import "time"

// Profile maps an auth identity to its role, region and organization (profiles)
type Profile struct {
	UserID         string    `json:"user_id" db:"user_id"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	Role           Role      `json:"role" db:"role"`
	RegionID       *string   `json:"region_id,omitempty" db:"region_id"`
	OrganizationID *string   `json:"organization_id,omitempty" db:"organization_id"` // derived cache of the active membership
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type OrganizationStatus string

const (
	OrgPending   OrganizationStatus = "pending"
	OrgActive    OrganizationStatus = "active"
	OrgInactive  OrganizationStatus = "inactive"
	OrgSuspended OrganizationStatus = "suspended"
)

func (s OrganizationStatus) Valid() bool {
	switch s {
	case OrgPending, OrgActive, OrgInactive, OrgSuspended:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationInReview   VerificationStatus = "in_review"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationUnverified, VerificationInReview, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Organization farmer collective registered under a region (organizations)
type Organization struct {
	ID                 string             `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	RegionID           string             `json:"region_id" db:"region_id"`
	ProvinceID         *string            `json:"province_id,omitempty" db:"province_id"`
	RegistrationNumber string             `json:"registration_number" db:"registration_number"`
	Address            string             `json:"address" db:"address"`
	ContactPerson      string             `json:"contact_person" db:"contact_person"`
	ContactEmail       string             `json:"contact_email" db:"contact_email"`
	ContactPhone       string             `json:"contact_phone" db:"contact_phone"`
	Status             OrganizationStatus `json:"status" db:"status"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	MemberCount        int                `json:"member_count" db:"member_count"`
	AllocatedBudget    int64              `json:"allocated_budget" db:"allocated_budget"`
	UtilizedBudget     int64              `json:"utilized_budget" db:"utilized_budget"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// OrganizationUpdate partial update; nil fields are left unchanged
type OrganizationUpdate struct {
	Name               *string             `json:"name,omitempty"`
	ProvinceID         *string             `json:"province_id,omitempty"`
	RegistrationNumber *string             `json:"registration_number,omitempty"`
	Address            *string             `json:"address,omitempty"`
	ContactPerson      *string             `json:"contact_person,omitempty"`
	ContactEmail       *string             `json:"contact_email,omitempty"`
	ContactPhone       *string             `json:"contact_phone,omitempty"`
	Status             *OrganizationStatus `json:"status,omitempty"`
	VerificationStatus *VerificationStatus `json:"verification_status,omitempty"`
}

// Empty reports whether no field is set
func (u OrganizationUpdate) Empty() bool {
	return u.Name == nil && u.ProvinceID == nil && u.RegistrationNumber == nil && u.Address == nil &&
		u.ContactPerson == nil && u.ContactEmail == nil && u.ContactPhone == nil &&
		u.Status == nil && u.VerificationStatus == nil
}

// OrganizationAdmin (organization_admins)
type OrganizationAdmin struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberActive   MemberStatus = "active"
	MemberRejected MemberStatus = "rejected"
)

// Terminal reports whether approve/reject can no longer change the status
func (s MemberStatus) Terminal() bool { return s == MemberActive || s == MemberRejected }

// OrganizationMember a farmer's application/membership (organization_members)
type OrganizationMember struct {
	ID                string       `json:"id" db:"id"`
	FarmerID          string       `json:"farmer_id" db:"farmer_id"` // farmer_profiles.id
	OrganizationID    string       `json:"organization_id" db:"organization_id"`
	Role              string       `json:"role" db:"role"`
	Status            MemberStatus `json:"status" db:"status"`
	JoinDate          *time.Time   `json:"join_date,omitempty" db:"join_date"`
	ApplicationReason string       `json:"application_reason" db:"application_reason"`
	ExperienceLevel   string       `json:"experience_level" db:"experience_level"`
	FarmDescription   string       `json:"farm_description" db:"farm_description"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// OrganizationFilter list filter
type OrganizationFilter struct {
	RegionID string
	Status   OrganizationStatus
	Search   string
}
