package valueobject

import (
	"fmt"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// transitionTable описывает конечный автомат: статус -> событие -> новый статус.
type transitionTable[S ~string, E ~string] map[S]map[E]S

// apply возвращает новый статус или InvalidTransition с конкретной причиной.
// reasons задаёт человекочитаемое объяснение для статусов, из которых переход невозможен.
func (t transitionTable[S, E]) apply(subject string, from S, event E, reasons map[S]string) (S, error) {
	if next, ok := t[from][event]; ok {
		return next, nil
	}
	if reason, ok := reasons[from]; ok {
		return from, apperror.InvalidTransition(reason)
	}
	return from, apperror.InvalidTransition(fmt.Sprintf("%s: действие %q недоступно в статусе %q", subject, event, from))
}

func (t transitionTable[S, E]) can(from S, event E) bool {
	_, ok := t[from][event]
	return ok
}
