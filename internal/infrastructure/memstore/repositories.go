package memstore

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type jobRepo struct{ st *state }

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	if _, ok := r.st.jobs[job.ID]; ok {
		return apperror.Conflict("заказ уже существует")
	}
	r.st.jobs[job.ID] = *job
	return nil
}

func (r jobRepo) Update(ctx context.Context, job *entity.Job, expected valueobject.JobStatus) error {
	stored, ok := r.st.jobs[job.ID]
	if !ok || stored.DeletedAt != nil {
		return apperror.ErrJobNotFound
	}
	if stored.Status != expected {
		return apperror.ErrStaleWrite
	}
	r.st.jobs[job.ID] = *job
	return nil
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := r.st.jobs[id]
	if !ok || job.DeletedAt != nil {
		return nil, apperror.ErrJobNotFound
	}
	return &job, nil
}

func (r jobRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.FindByID(ctx, id)
}

func (r jobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*entity.Job, int, error) {
	var out []*entity.Job
	for _, job := range r.st.jobs {
		if job.DeletedAt != nil {
			continue
		}
		if filter.ClientID != nil && job.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		j := job
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

type proposalRepo struct{ st *state }

func (r proposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	for _, existing := range r.st.proposals {
		if existing.JobID == p.JobID && existing.FreelancerID == p.FreelancerID {
			return apperror.Conflict("вы уже откликнулись на этот заказ")
		}
	}
	r.st.proposals[p.ID] = *p
	return nil
}

func (r proposalRepo) Update(ctx context.Context, p *entity.Proposal, expected valueobject.ProposalStatus) error {
	stored, ok := r.st.proposals[p.ID]
	if !ok {
		return apperror.ErrProposalNotFound
	}
	if stored.Status != expected {
		return apperror.ErrStaleWrite
	}
	r.st.proposals[p.ID] = *p
	return nil
}

func (r proposalRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	p, ok := r.st.proposals[id]
	if !ok {
		return nil, apperror.ErrProposalNotFound
	}
	return &p, nil
}

func (r proposalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return r.FindByID(ctx, id)
}

func (r proposalRepo) filter(keep func(entity.Proposal) bool) []*entity.Proposal {
	var out []*entity.Proposal
	for _, p := range r.st.proposals {
		if keep(p) {
			item := p
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

func (r proposalRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Proposal, error) {
	return r.filter(func(p entity.Proposal) bool { return p.JobID == jobID }), nil
}

func (r proposalRepo) FindByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Proposal, error) {
	return r.filter(func(p entity.Proposal) bool { return p.FreelancerID == freelancerID }), nil
}

func (r proposalRepo) FindByJobAndFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (*entity.Proposal, error) {
	found := r.filter(func(p entity.Proposal) bool { return p.JobID == jobID && p.FreelancerID == freelancerID })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r proposalRepo) CountByJobID(ctx context.Context, jobID uuid.UUID) (int, error) {
	return len(r.filter(func(p entity.Proposal) bool { return p.JobID == jobID })), nil
}

type contractRepo struct{ st *state }

func (r contractRepo) Create(ctx context.Context, c *entity.Contract) error {
	for _, existing := range r.st.contracts {
		if existing.JobID == c.JobID {
			return apperror.Conflict("контракт по этому заказу уже существует")
		}
	}
	r.st.contracts[c.ID] = *c
	return nil
}

func (r contractRepo) Update(ctx context.Context, c *entity.Contract, expected valueobject.ContractStatus) error {
	stored, ok := r.st.contracts[c.ID]
	if !ok {
		return apperror.ErrContractNotFound
	}
	if stored.Status != expected {
		return apperror.ErrStaleWrite
	}
	r.st.contracts[c.ID] = *c
	return nil
}

func (r contractRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	c, ok := r.st.contracts[id]
	if !ok {
		return nil, apperror.ErrContractNotFound
	}
	return &c, nil
}

func (r contractRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return r.FindByID(ctx, id)
}

func (r contractRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Contract, error) {
	for _, c := range r.st.contracts {
		if c.JobID == jobID {
			item := c
			return &item, nil
		}
	}
	return nil, nil
}

func (r contractRepo) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Contract, int, error) {
	var out []*entity.Contract
	for _, c := range r.st.contracts {
		if c.ClientID == userID || c.FreelancerID == userID {
			item := c
			out = append(out, &item)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, limit, offset), len(out), nil
}

type escrowRepo struct{ st *state }

func (r escrowRepo) Create(ctx context.Context, e *entity.EscrowPayment) error {
	for _, existing := range r.st.escrows {
		if existing.TxRef == e.TxRef {
			return apperror.Conflict("платёж с такой ссылкой уже существует")
		}
		if existing.ContractID == e.ContractID && existing.Status != valueobject.EscrowStatusFailed {
			return apperror.Conflict("по контракту уже есть активный платёж")
		}
	}
	r.st.escrows[e.ID] = *e
	return nil
}

func (r escrowRepo) Update(ctx context.Context, e *entity.EscrowPayment, expected valueobject.EscrowStatus) error {
	stored, ok := r.st.escrows[e.ID]
	if !ok {
		return apperror.ErrEscrowNotFound
	}
	if stored.Status != expected {
		return apperror.ErrStaleWrite
	}
	r.st.escrows[e.ID] = *e
	return nil
}

func (r escrowRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error) {
	e, ok := r.st.escrows[id]
	if !ok {
		return nil, apperror.ErrEscrowNotFound
	}
	return &e, nil
}

func (r escrowRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error) {
	return r.FindByID(ctx, id)
}

func (r escrowRepo) FindByTxRefForUpdate(ctx context.Context, txRef string) (*entity.EscrowPayment, error) {
	for _, e := range r.st.escrows {
		if e.TxRef == txRef {
			item := e
			return &item, nil
		}
	}
	return nil, apperror.ErrEscrowNotFound
}

func (r escrowRepo) FindLiveByContract(ctx context.Context, contractID uuid.UUID) (*entity.EscrowPayment, error) {
	for _, e := range r.st.escrows {
		if e.ContractID == contractID && e.Status != valueobject.EscrowStatusFailed {
			item := e
			return &item, nil
		}
	}
	return nil, nil
}

func (r escrowRepo) ListPendingCreatedBefore(ctx context.Context, before time.Time, after *repository.PendingCursor, limit int) ([]*entity.EscrowPayment, error) {
	var out []*entity.EscrowPayment
	for _, e := range r.st.escrows {
		if e.Status != valueobject.EscrowStatusPending || !e.CreatedAt.Before(before) {
			continue
		}
		if after != nil && !pendingAfter(e.CreatedAt, e.ID, after) {
			continue
		}
		item := e
		out = append(out, &item)
	}
	sort.Slice(out, func(i, k int) bool {
		return pendingAfter(out[k].CreatedAt, out[k].ID, &repository.PendingCursor{CreatedAt: out[i].CreatedAt, ID: out[i].ID})
	})
	return page(out, limit, 0), nil
}

// pendingAfter сравнивает (created_at, id) так же, как postgres сравнивает строки.
func pendingAfter(createdAt time.Time, id uuid.UUID, cur *repository.PendingCursor) bool {
	if !createdAt.Equal(cur.CreatedAt) {
		return createdAt.After(cur.CreatedAt)
	}
	return bytes.Compare(id[:], cur.ID[:]) > 0
}

type disputeRepo struct{ st *state }

func (r disputeRepo) Create(ctx context.Context, d *entity.Dispute) error {
	for _, existing := range r.st.disputes {
		if existing.EscrowPaymentID == d.EscrowPaymentID && existing.Status == valueobject.DisputeStatusOpen {
			return apperror.Conflict("по этому платежу уже открыт спор")
		}
	}
	r.st.disputes[d.ID] = *d
	return nil
}

func (r disputeRepo) Update(ctx context.Context, d *entity.Dispute, expected valueobject.DisputeStatus) error {
	stored, ok := r.st.disputes[d.ID]
	if !ok {
		return apperror.ErrDisputeNotFound
	}
	if stored.Status != expected {
		return apperror.ErrStaleWrite
	}
	r.st.disputes[d.ID] = *d
	return nil
}

func (r disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	d, ok := r.st.disputes[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return &d, nil
}

func (r disputeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.FindByID(ctx, id)
}

func (r disputeRepo) byEscrow(escrowID uuid.UUID, openOnly bool) *entity.Dispute {
	var latest *entity.Dispute
	for _, d := range r.st.disputes {
		if d.EscrowPaymentID != escrowID {
			continue
		}
		if openOnly && d.Status != valueobject.DisputeStatusOpen {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			item := d
			latest = &item
		}
	}
	return latest
}

func (r disputeRepo) FindOpenByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error) {
	return r.byEscrow(escrowID, true), nil
}

func (r disputeRepo) FindLatestByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error) {
	return r.byEscrow(escrowID, false), nil
}

func (r disputeRepo) List(ctx context.Context, filter repository.DisputeFilter) ([]*entity.Dispute, int, error) {
	var out []*entity.Dispute
	for _, d := range r.st.disputes {
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.PartyID != nil {
			c, ok := r.st.contracts[d.ContractID]
			if !ok || (c.ClientID != *filter.PartyID && c.FreelancerID != *filter.PartyID) {
				continue
			}
		}
		item := d
		out = append(out, &item)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

type walletRepo struct{ st *state }

func (r walletRepo) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*entity.Wallet, error) {
	if w, err := r.FindByUserID(ctx, userID); err == nil {
		return w, nil
	}
	w := entity.NewWallet(userID, currency)
	r.st.wallets[w.ID] = *w
	return w, nil
}

func (r walletRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.UserID == userID {
			item := w
			return &item, nil
		}
	}
	return nil, apperror.ErrWalletNotFound
}

func (r walletRepo) UpdateBalance(ctx context.Context, w *entity.Wallet) error {
	if _, ok := r.st.wallets[w.ID]; !ok {
		return apperror.ErrWalletNotFound
	}
	r.st.wallets[w.ID] = *w
	return nil
}

func (r walletRepo) InsertTransaction(ctx context.Context, tx *entity.WalletTransaction) (bool, error) {
	for _, existing := range r.st.walletTxs {
		if existing.WalletID == tx.WalletID && existing.Reference == tx.Reference {
			return false, nil
		}
	}
	r.st.walletTxs = append(r.st.walletTxs, *tx)
	return true, nil
}

func (r walletRepo) FindTransactionByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.WalletTransaction, error) {
	for _, existing := range r.st.walletTxs {
		if existing.WalletID == walletID && existing.Reference == reference {
			item := existing
			return &item, nil
		}
	}
	return nil, nil
}

func (r walletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error) {
	var out []*entity.WalletTransaction
	for i := len(r.st.walletTxs) - 1; i >= 0; i-- {
		if r.st.walletTxs[i].WalletID == walletID {
			item := r.st.walletTxs[i]
			out = append(out, &item)
		}
	}
	return page(out, limit, offset), len(out), nil
}

func (r walletRepo) SumTransactions(ctx context.Context, walletID uuid.UUID) (valueobject.Money, error) {
	var sum valueobject.Money
	for _, tx := range r.st.walletTxs {
		if tx.WalletID == walletID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

type notificationRepo struct{ st *state }

func (r notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	r.st.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	n, ok := r.st.notifications[id]
	if !ok {
		return nil, apperror.ErrNotificationNotFound
	}
	return &n, nil
}

func (r notificationRepo) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*entity.Notification, int, error) {
	var out []*entity.Notification
	for _, n := range r.st.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		item := n
		out = append(out, &item)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, limit, offset), len(out), nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	n, ok := r.st.notifications[id]
	if !ok || n.UserID != userID {
		return apperror.ErrNotificationNotFound
	}
	if !n.IsRead {
		now := time.Now().UTC()
		n.IsRead = true
		n.ReadAt = &now
		r.st.notifications[id] = n
	}
	return nil
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var updated int64
	now := time.Now().UTC()
	for id, n := range r.st.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			r.st.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range r.st.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
