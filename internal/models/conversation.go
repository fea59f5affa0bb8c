package models

import "time"

type Message struct {
	Id           string     `json:"id"`
	MissionId    string     `json:"missionId"`
	ContractorId string     `json:"contractorId"`
	SenderId     string     `json:"senderId"`
	SenderRole   Role       `json:"senderRole"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
}

// ConversationKey identifies the thread between a mission's owner and one
// bidding contractor.
type ConversationKey struct {
	MissionId    string
	ContractorId string
}

type Conversation struct {
	MissionId         string     `json:"missionId"`
	ContractorId      string     `json:"contractorId"`
	HomeownerId       string     `json:"homeownerId"`
	BidStatus         BidStatus  `json:"bidStatus"`
	Messages          []Message  `json:"messages"`
	UnreadHomeowner   int        `json:"unreadHomeowner"`
	UnreadContractor  int        `json:"unreadContractor"`
	LastMessageAt     *time.Time `json:"lastMessageAt,omitempty"`
	CanSendHomeowner  bool       `json:"canSendHomeowner"`
	CanSendContractor bool       `json:"canSendContractor"`
}

// CanSend decides whether the party with the given role may post the next
// message. lastSender is empty for a conversation without messages.
//
// Acceptance lifts every restriction. Homeowners are never throttled.
// Contractors must wait for a homeowner reply between messages; any other
// bid status plays no part.
func CanSend(role Role, lastSender Role, status BidStatus) bool {
	if status == BidAccepted {
		return true
	}
	if role == RoleHomeowner {
		return true
	}
	return lastSender != RoleContractor
}

// Derive fills the computed fields of c from its messages and bid status.
func (c *Conversation) Derive() {
	c.UnreadHomeowner, c.UnreadContractor = 0, 0
	c.LastMessageAt = nil

	var last Role
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ReadAt == nil {
			switch m.SenderRole {
			case RoleContractor:
				c.UnreadHomeowner++
			case RoleHomeowner:
				c.UnreadContractor++
			}
		}
		last = m.SenderRole
		at := m.CreatedAt
		c.LastMessageAt = &at
	}

	c.CanSendHomeowner = CanSend(RoleHomeowner, last, c.BidStatus)
	c.CanSendContractor = CanSend(RoleContractor, last, c.BidStatus)
}

// CanSendAs returns the derived permission for role.
func (c *Conversation) CanSendAs(role Role) bool {
	if role == RoleHomeowner {
		return c.CanSendHomeowner
	}
	return c.CanSendContractor
}
