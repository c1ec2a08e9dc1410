package handler

import (
	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
)

type MintResponse struct {
	Owner id.AccountID `json:"owner"`
}

type AddMilestoneResponse struct {
	MilestoneID uint32 `json:"milestone_id"`
}

type MilestonesResponse struct {
	Milestones []models.Milestone `json:"milestones"`
	Count      int                `json:"count"`
}

// OwnerResponse carries a null owner before mint.
type OwnerResponse struct {
	Owner *id.AccountID `json:"owner"`
}

type TipResponse struct {
	From   id.AccountID `json:"from"`
	To     id.AccountID `json:"to"`
	Amount id.Balance   `json:"amount"`
}

type UpdateAdminResponse struct {
	Admin id.AccountID `json:"admin"`
}

type NotificationsResponse struct {
	Account       id.AccountID   `json:"account"`
	Notifications []events.Event `json:"notifications"`
	Count         int            `json:"count"`
}
