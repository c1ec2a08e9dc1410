package models

import (
	id "becoming/pkg/domain"
)

const (
	EventMinted         = "Minted"
	EventMilestoneAdded = "MilestoneAdded"
	EventTipSent        = "TipSent"
)

// Minted is emitted when an identity binds the record.
type Minted struct {
	Owner id.AccountID `json:"owner"`
}

func (Minted) EventName() string { return EventMinted }

func (e Minted) Topics() []id.AccountID { return []id.AccountID{e.Owner} }

// MilestoneAdded is emitted for every appended milestone.
type MilestoneAdded struct {
	Owner       id.AccountID `json:"owner"`
	MilestoneID uint32       `json:"milestone_id"`
	Title       string       `json:"title"`
	Category    *string      `json:"category"`
}

func (MilestoneAdded) EventName() string { return EventMilestoneAdded }

func (e MilestoneAdded) Topics() []id.AccountID { return []id.AccountID{e.Owner} }

// TipSent is emitted when a tip was forwarded.
type TipSent struct {
	From   id.AccountID `json:"from"`
	To     id.AccountID `json:"to"`
	Amount id.Balance   `json:"amount"`
}

func (TipSent) EventName() string { return EventTipSent }

func (e TipSent) Topics() []id.AccountID { return []id.AccountID{e.From, e.To} }
