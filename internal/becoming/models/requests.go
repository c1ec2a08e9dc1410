package models

import (
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
)

// AddMilestoneRequest is the body of POST /v1/milestones.
type AddMilestoneRequest struct {
	Title       string  `json:"title"`
	ProofHash   string  `json:"proof_hash"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// TipRequest is the body of POST /v1/tip. Amount is the value attached to
// the call.
type TipRequest struct {
	Recipient string     `json:"recipient"`
	Amount    id.Balance `json:"amount"`
}

// Parse resolves the recipient identity.
func (r *TipRequest) Parse() (id.AccountID, error) {
	if r.Recipient == "" {
		return id.AccountID{}, dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	recipient, err := id.ParseAccountID(r.Recipient)
	if err != nil {
		return id.AccountID{}, dErrors.Wrap(err, dErrors.CodeValidation, "recipient must be a 32-byte hex identity")
	}
	return recipient, nil
}

// UpdateAdminRequest is the body of PUT /v1/admin.
type UpdateAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// Parse resolves the new admin identity.
func (r *UpdateAdminRequest) Parse() (id.AccountID, error) {
	if r.NewAdmin == "" {
		return id.AccountID{}, dErrors.New(dErrors.CodeValidation, "new_admin is required")
	}
	next, err := id.ParseAccountID(r.NewAdmin)
	if err != nil {
		return id.AccountID{}, dErrors.Wrap(err, dErrors.CodeValidation, "new_admin must be a 32-byte hex identity")
	}
	return next, nil
}
