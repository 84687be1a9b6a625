package valueobject

import "github.com/ignatzorin/engagement-backend/internal/pkg/apperror"

type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusOpen       JobStatus = "open"
	JobStatusContracted JobStatus = "contracted"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

type JobEvent string

const (
	JobEventPublish  JobEvent = "publish"
	JobEventContract JobEvent = "contract"
	JobEventStart    JobEvent = "start"
	JobEventComplete JobEvent = "complete"
	JobEventCancel   JobEvent = "cancel"
)

var jobTransitions = transitionTable[JobStatus, JobEvent]{
	JobStatusDraft: {
		JobEventPublish: JobStatusOpen,
	},
	JobStatusOpen: {
		JobEventContract: JobStatusContracted,
	},
	JobStatusContracted: {
		JobEventStart:  JobStatusInProgress,
		JobEventCancel: JobStatusCancelled,
	},
	JobStatusInProgress: {
		JobEventComplete: JobStatusCompleted,
		JobEventCancel:   JobStatusCancelled,
	},
}

var jobReasons = map[JobStatus]string{
	JobStatusCompleted: "заказ уже завершён",
	JobStatusCancelled: "заказ отменён",
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusDraft, JobStatusOpen, JobStatusContracted, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// Apply применяет событие к статусу заказа.
func (s JobStatus) Apply(event JobEvent) (JobStatus, error) {
	return jobTransitions.apply("заказ", s, event, jobReasons)
}

func (s JobStatus) Can(event JobEvent) bool {
	return jobTransitions.can(s, event)
}

// IsEditable сообщает, можно ли менять описание заказа.
func (s JobStatus) IsEditable() bool {
	return s == JobStatusDraft || s == JobStatusOpen
}

func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус заказа")
	}
	return s, nil
}

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusOffered   ProposalStatus = "offered"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

type ProposalEvent string

const (
	ProposalEventOffer    ProposalEvent = "offer"
	ProposalEventAccept   ProposalEvent = "accept"
	ProposalEventReject   ProposalEvent = "reject"
	ProposalEventWithdraw ProposalEvent = "withdraw"
)

// PENDING -> ACCEPTED напрямую не существует: клиентское принятие проходит
// через неявный шаг OFFERED.
var proposalTransitions = transitionTable[ProposalStatus, ProposalEvent]{
	ProposalStatusPending: {
		ProposalEventOffer:    ProposalStatusOffered,
		ProposalEventReject:   ProposalStatusRejected,
		ProposalEventWithdraw: ProposalStatusWithdrawn,
	},
	ProposalStatusOffered: {
		ProposalEventAccept: ProposalStatusAccepted,
		ProposalEventReject: ProposalStatusRejected,
	},
}

var proposalReasons = map[ProposalStatus]string{
	ProposalStatusAccepted:  "предложение уже принято",
	ProposalStatusRejected:  "предложение уже отклонено",
	ProposalStatusWithdrawn: "предложение уже отозвано",
}

func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusPending, ProposalStatusOffered, ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusWithdrawn:
		return true
	}
	return false
}

func (s ProposalStatus) Apply(event ProposalEvent) (ProposalStatus, error) {
	return proposalTransitions.apply("предложение", s, event, proposalReasons)
}

// IsOpen сообщает, ждёт ли предложение решения.
func (s ProposalStatus) IsOpen() bool {
	return s == ProposalStatusPending || s == ProposalStatusOffered
}

func NewProposalStatus(status string) (ProposalStatus, error) {
	s := ProposalStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус предложения")
	}
	return s, nil
}

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

type ContractEvent string

const (
	ContractEventComplete ContractEvent = "complete"
	ContractEventCancel   ContractEvent = "cancel"
)

var contractTransitions = transitionTable[ContractStatus, ContractEvent]{
	ContractStatusActive: {
		ContractEventComplete: ContractStatusCompleted,
		ContractEventCancel:   ContractStatusCancelled,
	},
}

var contractReasons = map[ContractStatus]string{
	ContractStatusCompleted: "контракт уже завершён",
	ContractStatusCancelled: "контракт уже отменён",
}

func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusActive, ContractStatusCompleted, ContractStatusCancelled:
		return true
	}
	return false
}

func (s ContractStatus) Apply(event ContractEvent) (ContractStatus, error) {
	return contractTransitions.apply("контракт", s, event, contractReasons)
}
