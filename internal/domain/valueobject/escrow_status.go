package valueobject

import "strings"

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusPaid     EscrowStatus = "paid"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusFailed   EscrowStatus = "failed"
)

type EscrowEvent string

const (
	EscrowEventPay     EscrowEvent = "pay"
	EscrowEventFail    EscrowEvent = "fail"
	EscrowEventRelease EscrowEvent = "release"
	EscrowEventRefund  EscrowEvent = "refund"
)

var escrowTransitions = transitionTable[EscrowStatus, EscrowEvent]{
	EscrowStatusPending: {
		EscrowEventPay:  EscrowStatusPaid,
		EscrowEventFail: EscrowStatusFailed,
	},
	EscrowStatusPaid: {
		EscrowEventRelease: EscrowStatusReleased,
		EscrowEventRefund:  EscrowStatusRefunded,
	},
}

var escrowReasons = map[EscrowStatus]string{
	EscrowStatusPending:  "платёж ещё не подтверждён",
	EscrowStatusReleased: "средства уже переведены исполнителю",
	EscrowStatusRefunded: "средства уже возвращены клиенту",
	EscrowStatusFailed:   "платёж завершился ошибкой",
}

func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusPending, EscrowStatusPaid, EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusFailed:
		return true
	}
	return false
}

func (s EscrowStatus) Apply(event EscrowEvent) (EscrowStatus, error) {
	return escrowTransitions.apply("эскроу", s, event, escrowReasons)
}

// IsSettled сообщает, что средства уже покинули эскроу.
func (s EscrowStatus) IsSettled() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded
}

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusRejected DisputeStatus = "rejected"
)

type DisputeEvent string

const (
	DisputeEventResolve DisputeEvent = "resolve"
	DisputeEventReject  DisputeEvent = "reject"
)

var disputeTransitions = transitionTable[DisputeStatus, DisputeEvent]{
	DisputeStatusOpen: {
		DisputeEventResolve: DisputeStatusResolved,
		DisputeEventReject:  DisputeStatusRejected,
	},
}

var disputeReasons = map[DisputeStatus]string{
	DisputeStatusResolved: "спор уже разрешён",
	DisputeStatusRejected: "спор уже отклонён",
}

func (s DisputeStatus) Apply(event DisputeEvent) (DisputeStatus, error) {
	return disputeTransitions.apply("спор", s, event, disputeReasons)
}

type DisputeType string

const (
	DisputeTypeNonDelivery DisputeType = "non_delivery"
	DisputeTypeQuality     DisputeType = "quality"
	DisputeTypePayment     DisputeType = "payment"
	DisputeTypeOther       DisputeType = "other"
)

func (t DisputeType) IsValid() bool {
	switch t {
	case DisputeTypeNonDelivery, DisputeTypeQuality, DisputeTypePayment, DisputeTypeOther:
		return true
	}
	return false
}

// DisputeOutcome определяет, куда уходят средства после решения спора.
type DisputeOutcome string

const (
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
)

func (o DisputeOutcome) IsValid() bool {
	return o == DisputeOutcomeRelease || o == DisputeOutcomeRefund
}

// GatewayStatus: нормализованный статус транзакции платёжного шлюза.
type GatewayStatus string

const (
	GatewayStatusSuccess GatewayStatus = "success"
	GatewayStatusFailed  GatewayStatus = "failed"
	GatewayStatusPending GatewayStatus = "pending"
)

// ParseGatewayStatus приводит сырое значение шлюза к одному из трёх статусов.
// Всё неизвестное считается ожидающим.
func ParseGatewayStatus(raw string) GatewayStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "paid", "completed":
		return GatewayStatusSuccess
	case "failed", "failure", "cancelled", "canceled", "reversed", "expired":
		return GatewayStatusFailed
	default:
		return GatewayStatusPending
	}
}
