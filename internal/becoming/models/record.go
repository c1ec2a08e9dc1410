package models

import (
	"math"
	"time"

	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
)

// Record is the aggregate root of a record store: one soul-bound credential.
//
// Invariants:
//   - Owner goes from absent to present exactly once and is never cleared
//   - Milestones are append-only; a milestone's position is its permanent id
//   - Admin changes only through the current admin
type Record struct {
	Owner      *id.AccountID `json:"owner"`
	Admin      id.AccountID  `json:"admin"`
	Milestones []Milestone   `json:"milestones"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewRecord creates an unbound record administered by admin.
func NewRecord(admin id.AccountID, now time.Time) *Record {
	return &Record{Admin: admin, CreatedAt: now}
}

// IsBound reports whether an owner has minted the record.
func (r *Record) IsBound() bool {
	return r.Owner != nil
}

// IsOwner is false for every caller while the record is unbound.
func (r *Record) IsOwner(caller id.AccountID) bool {
	return r.Owner != nil && *r.Owner == caller
}

func (r *Record) IsAdmin(caller id.AccountID) bool {
	return r.Admin == caller
}

// CanMint checks that no identity is bound yet.
// Use with ApplyMint inside a transaction.
func (r *Record) CanMint() error {
	if r.IsBound() {
		return dErrors.New(dErrors.CodeAlreadyBound, "record is already bound to an owner")
	}
	return nil
}

// ApplyMint binds caller as owner. Call CanMint first.
func (r *Record) ApplyMint(caller id.AccountID) {
	owner := caller
	r.Owner = &owner
}

// CanAddMilestone checks that caller is the bound owner and that the next id
// is representable.
func (r *Record) CanAddMilestone(caller id.AccountID) error {
	if !r.IsOwner(caller) {
		return dErrors.New(dErrors.CodeNotOwner, "only the owner can add milestones")
	}
	if uint64(len(r.Milestones)) > math.MaxUint32 {
		return dErrors.New(dErrors.CodeInvariantViolation, "milestone ids exhausted")
	}
	return nil
}

// ApplyMilestone appends m, assigning it the next id, and returns that id.
// Call CanAddMilestone first.
func (r *Record) ApplyMilestone(m Milestone) Milestone {
	m.ID = uint32(len(r.Milestones))
	r.Milestones = append(r.Milestones, m)
	return m
}

// CanAdminister checks that caller holds the admin role.
func (r *Record) CanAdminister(caller id.AccountID) error {
	if !r.IsAdmin(caller) {
		return dErrors.New(dErrors.CodeNotAdmin, "caller is not the admin")
	}
	return nil
}

// ApplyAdmin rotates the admin role. Call CanAdminister first.
func (r *Record) ApplyAdmin(next id.AccountID) {
	r.Admin = next
}

// Stage is derived from the milestone count on every read.
func (r *Record) Stage() Stage {
	return StageFor(len(r.Milestones))
}

// Clone returns a deep copy so staged changes can be discarded.
func (r *Record) Clone() *Record {
	out := &Record{Admin: r.Admin, CreatedAt: r.CreatedAt}
	if r.Owner != nil {
		owner := *r.Owner
		out.Owner = &owner
	}
	if r.Milestones != nil {
		out.Milestones = make([]Milestone, len(r.Milestones))
		for i, m := range r.Milestones {
			out.Milestones[i] = m.clone()
		}
	}
	return out
}

// Export returns the admin data export: owner plus (title, proof hash) pairs
// in id order.
func (r *Record) Export() *ExportData {
	out := &ExportData{Milestones: make([]ExportedMilestone, 0, len(r.Milestones))}
	if r.Owner != nil {
		owner := *r.Owner
		out.Owner = &owner
	}
	for _, m := range r.Milestones {
		out.Milestones = append(out.Milestones, ExportedMilestone{Title: m.Title, ProofHash: m.ProofHash})
	}
	return out
}

// Profile is the public view of the record.
func (r *Record) Profile() *Profile {
	clone := r.Clone()
	milestones := clone.Milestones
	if milestones == nil {
		milestones = []Milestone{}
	}
	return &Profile{
		Owner:          clone.Owner,
		Stage:          r.Stage(),
		MilestoneCount: len(milestones),
		Milestones:     milestones,
	}
}

// ExportData is what the admin export returns.
type ExportData struct {
	Owner      *id.AccountID       `json:"owner"`
	Milestones []ExportedMilestone `json:"milestones"`
}

type ExportedMilestone struct {
	Title     string `json:"title"`
	ProofHash string `json:"proof_hash"`
}

// Profile aggregates everything a public profile page shows.
type Profile struct {
	Owner          *id.AccountID `json:"owner"`
	Stage          Stage         `json:"stage"`
	MilestoneCount int           `json:"milestone_count"`
	Milestones     []Milestone   `json:"milestones"`
}
