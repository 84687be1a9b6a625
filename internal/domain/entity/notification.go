package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type NotificationType string

const (
	NotificationProposalSubmitted NotificationType = "proposal_submitted"
	NotificationProposalOffered   NotificationType = "proposal_offered"
	NotificationProposalAccepted  NotificationType = "proposal_accepted"
	NotificationProposalRejected  NotificationType = "proposal_rejected"
	NotificationProposalWithdrawn NotificationType = "proposal_withdrawn"
	NotificationContractCreated   NotificationType = "contract_created"
	NotificationContractCancelled NotificationType = "contract_cancelled"
	NotificationEscrowPaid        NotificationType = "escrow_paid"
	NotificationEscrowFailed      NotificationType = "escrow_failed"
	NotificationEscrowReleased    NotificationType = "escrow_released"
	NotificationEscrowRefunded    NotificationType = "escrow_refunded"
	NotificationJobCompleted      NotificationType = "job_completed"
	NotificationDisputeOpened     NotificationType = "dispute_opened"
	NotificationDisputeResolved   NotificationType = "dispute_resolved"
	NotificationDisputeRejected   NotificationType = "dispute_rejected"
	NotificationWithdrawal        NotificationType = "wallet_withdrawal"
	NotificationSystem            NotificationType = "system"
)

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Title     string
	Message   string
	Link      string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

func NewNotification(userID uuid.UUID, notificationType NotificationType, title, message, link string) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, apperror.Validation("получатель уведомления обязателен")
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperror.Validation("заголовок уведомления обязателен")
	}
	if notificationType == "" {
		notificationType = NotificationSystem
	}

	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (n *Notification) IsOwnedBy(userID uuid.UUID) bool {
	return n.UserID == userID
}
