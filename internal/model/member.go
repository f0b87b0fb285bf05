package model

import "time"

// Gender is a member's registered gender.
type Gender string

// Gender values as stored in the database.
const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// MemberType distinguishes communicant members from catechumens.
type MemberType string

// Member types.
const (
	TypeCommunicant MemberType = "Communicant"
	TypeCatechumen  MemberType = "Catechumen"
)

// Valid reports whether t is a known member type.
func (t MemberType) Valid() bool {
	return t == TypeCommunicant || t == TypeCatechumen
}

// Member represents a registered church member identified by a unique card number.
type Member struct {
	CreatedAt  time.Time
	CardNumber string
	FullName   string
	Address    string
	Phone      string
	Job        string
	Gender     Gender
	MemberType MemberType
	ID         int64
}

// MemberInput carries the caller-supplied fields for creating or updating a member.
// Zero-valued Gender and MemberType fall back to GenderMale and TypeCommunicant.
type MemberInput struct {
	CardNumber string
	FullName   string
	Address    string
	Phone      string
	Job        string
	Gender     Gender
	MemberType MemberType
}

// MemberWithTotal is a member joined with the exact sum of all their contributions.
type MemberWithTotal struct {
	Member
	TotalContributions string
}
