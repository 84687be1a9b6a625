package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

func TestJobStatus_Lifecycle(t *testing.T) {
	s := JobStatusDraft
	for _, step := range []struct {
		event JobEvent
		want  JobStatus
	}{
		{JobEventPublish, JobStatusOpen},
		{JobEventContract, JobStatusContracted},
		{JobEventStart, JobStatusInProgress},
		{JobEventComplete, JobStatusCompleted},
	} {
		next, err := s.Apply(step.event)
		require.NoError(t, err)
		assert.Equal(t, step.want, next)
		s = next
	}

	_, err := s.Apply(JobEventCancel)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Contains(t, err.Error(), "заказ уже завершён")
}

func TestJobStatus_RejectsSkippingStates(t *testing.T) {
	_, err := JobStatusDraft.Apply(JobEventContract)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = JobStatusOpen.Apply(JobEventStart)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = JobStatusContracted.Apply(JobEventComplete)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestProposalStatus_NoDirectAcceptFromPending(t *testing.T) {
	_, err := ProposalStatusPending.Apply(ProposalEventAccept)
	assert.True(t, apperror.IsInvalidTransition(err))

	offered, err := ProposalStatusPending.Apply(ProposalEventOffer)
	require.NoError(t, err)
	accepted, err := offered.Apply(ProposalEventAccept)
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusAccepted, accepted)
}

func TestProposalStatus_WithdrawnReason(t *testing.T) {
	_, err := ProposalStatusWithdrawn.Apply(ProposalEventAccept)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "предложение уже отозвано")

	_, err = ProposalStatusOffered.Apply(ProposalEventWithdraw)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestEscrowStatus_TerminalStatesAreOneWay(t *testing.T) {
	for _, terminal := range []EscrowStatus{EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusFailed} {
		for _, event := range []EscrowEvent{EscrowEventPay, EscrowEventFail, EscrowEventRelease, EscrowEventRefund} {
			_, err := terminal.Apply(event)
			assert.True(t, apperror.IsInvalidTransition(err), "%s + %s", terminal, event)
		}
	}

	_, err := EscrowStatusPending.Apply(EscrowEventRelease)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestDisputeStatus(t *testing.T) {
	next, err := DisputeStatusOpen.Apply(DisputeEventResolve)
	require.NoError(t, err)
	assert.Equal(t, DisputeStatusResolved, next)

	_, err = next.Apply(DisputeEventReject)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestParseGatewayStatus(t *testing.T) {
	assert.Equal(t, GatewayStatusSuccess, ParseGatewayStatus("success"))
	assert.Equal(t, GatewayStatusSuccess, ParseGatewayStatus(" Successful "))
	assert.Equal(t, GatewayStatusFailed, ParseGatewayStatus("failed"))
	assert.Equal(t, GatewayStatusFailed, ParseGatewayStatus("cancelled"))
	assert.Equal(t, GatewayStatusPending, ParseGatewayStatus("pending"))
	assert.Equal(t, GatewayStatusPending, ParseGatewayStatus("something-new"))
}
