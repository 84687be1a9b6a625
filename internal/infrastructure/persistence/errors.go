package persistence

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

const uniqueViolation = "23505"

// dbError переводит ошибку драйвера в AppError.
// Нарушение уникального индекса становится конфликтом с понятным сообщением.
func dbError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperror.Wrap(err, apperror.ErrCodeConflict, conflictMessage(pqErr.Constraint))
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}

func conflictMessage(constraint string) string {
	switch constraint {
	case "uq_proposals_job_freelancer":
		return "вы уже откликнулись на этот заказ"
	case "uq_proposals_accepted", "uq_contracts_job", "uq_contracts_proposal":
		return "по заказу уже заключён контракт"
	case "uq_escrow_live_contract":
		return "по контракту уже есть активный платёж"
	case "uq_escrow_tx_ref":
		return "платёж с такой ссылкой уже существует"
	case "uq_disputes_open":
		return "по этому платежу уже открыт спор"
	}
	return "запись уже существует"
}

// notFound возвращает notFoundErr для sql.ErrNoRows, иначе ошибку базы.
func notFound(err, notFoundErr error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	return dbError(err, message)
}

// exactlyOne проверяет, что UPDATE с условием на статус затронул строку.
func exactlyOne(res sql.Result, message string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, message)
	}
	if n == 0 {
		return apperror.ErrStaleWrite
	}
	return nil
}
