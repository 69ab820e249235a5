// Package models - club_member.go defines membership rows, their role/status enums, and
// the Position union that is the only sanctioned way to read or write role + officer title.
package models

import "time"

// Role is the stored role column of a membership row
type Role string

const (
	RolePresident Role = "president"
	RoleOfficer   Role = "officer"
	RoleMember    Role = "member"
)

// MemberStatus is the lifecycle state of a membership row
type MemberStatus string

const (
	// StatusPending marks an invitation that has not been accepted yet
	StatusPending MemberStatus = "pending"
	StatusActive  MemberStatus = "active"
)

// Display labels used by the roster and the position/graduation update.
const (
	PresidentLabel = "회장"
	MemberLabel    = "일반"
	GraduatedLabel = "졸업"
	EnrolledLabel  = "재학"
)

// ClubMember is the join row between a club and a profile. Its ID doubles as the
// invitation id while Status is pending.
type ClubMember struct {
	ID           string       `json:"id"`
	ClubID       string       `json:"club_id"`
	ProfileID    string       `json:"profile_id"`
	Role         Role         `json:"role"`
	OfficerTitle *string      `json:"officer_title"`
	Status       MemberStatus `json:"status"`
	Graduate     bool         `json:"graduate"`
	Ord          int          `json:"ord"`
	InvitedAt    *time.Time   `json:"invited_at"`
	JoinedAt     *time.Time   `json:"joined_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Position returns the member's role and officer title as a Position.
func (m *ClubMember) Position() Position {
	return PositionFromColumns(m.Role, m.OfficerTitle)
}

// SetPosition stores p into the Role and OfficerTitle columns.
func (m *ClubMember) SetPosition(p Position) {
	m.Role, m.OfficerTitle = p.Columns()
}

// MemberWithProfile is an active membership joined with the member's profile fields
type MemberWithProfile struct {
	ClubMember
	Name  string
	Email string
	Phone *string
}

// PendingInvitation is a pending membership joined with its club for the invitee's inbox
type PendingInvitation struct {
	ID           string    `json:"id"`
	ClubID       string    `json:"club_id"`
	ClubName     string    `json:"club_name"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	InvitedAt    time.Time `json:"invited_at"`
}

// Position is a member's place in the club hierarchy. Only officers carry a title.
// The zero value is a plain member.
type Position struct {
	role  Role
	title string
}

// PresidentPosition returns the president position.
func PresidentPosition() Position { return Position{role: RolePresident} }

// OfficerPosition returns an officer position with the given title.
func OfficerPosition(title string) Position { return Position{role: RoleOfficer, title: title} }

// MemberPosition returns the plain member position.
func MemberPosition() Position { return Position{role: RoleMember} }

// PositionFromLabel translates a display label: "회장" is the president, "일반" a
// plain member, and any other label is taken literally as an officer title.
func PositionFromLabel(label string) Position {
	switch label {
	case PresidentLabel:
		return PresidentPosition()
	case MemberLabel:
		return MemberPosition()
	default:
		return OfficerPosition(label)
	}
}

// PositionFromColumns rebuilds a Position from stored columns. An officer row with
// no title is read as an officer with an empty title; titles on non-officer rows
// are ignored.
func PositionFromColumns(role Role, title *string) Position {
	switch role {
	case RolePresident:
		return PresidentPosition()
	case RoleOfficer:
		if title == nil {
			return OfficerPosition("")
		}
		return OfficerPosition(*title)
	default:
		return MemberPosition()
	}
}

// Role returns the stored role for the position.
func (p Position) Role() Role {
	if p.role == "" {
		return RoleMember
	}
	return p.role
}

// Title returns the officer title and whether the position is an officer.
func (p Position) Title() (string, bool) {
	return p.title, p.role == RoleOfficer
}

// IsPresident reports whether p is the president position.
func (p Position) IsPresident() bool { return p.role == RolePresident }

// IsOfficer reports whether p is a leadership position (president or officer).
func (p Position) IsOfficer() bool { return p.role == RolePresident || p.role == RoleOfficer }

// Label returns the display label: "회장", the officer title, or "일반".
func (p Position) Label() string {
	switch p.role {
	case RolePresident:
		return PresidentLabel
	case RoleOfficer:
		if p.title == "" {
			return MemberLabel
		}
		return p.title
	default:
		return MemberLabel
	}
}

// Columns returns the role and officer_title column values for p.
func (p Position) Columns() (Role, *string) {
	if p.role == RoleOfficer {
		title := p.title
		return RoleOfficer, &title
	}
	return p.Role(), nil
}

// GraduateFromLabel maps "졸업" to true and every other label to false.
func GraduateFromLabel(label string) bool {
	return label == GraduatedLabel
}

// GraduationLabel returns "졸업" for graduates and "재학" otherwise.
func GraduationLabel(graduate bool) string {
	if graduate {
		return GraduatedLabel
	}
	return EnrolledLabel
}
