package service

import (
	"errors"

	"github.com/vaidashi/delivery-orders/internal/repository"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
)

// Messages shown to operators as is
const (
	MsgInvalidDates   = "Date non valide (YYYY-MM-DD)"
	MsgMissingFields  = "Dati mancanti"
	MsgInvalidRole    = "Ruolo non valido"
	MsgOrderLocked    = "Ordine stampato: righe non modificabili"
	MsgBadCredentials = "Credenziali non valide"
)

// ErrOrderLocked is returned for line changes on a printed order
var ErrOrderLocked = apperrors.NewConflictError(MsgOrderLocked)

// translate maps repository sentinels onto application errors, naming the
// entity in the message. Anything unrecognised is returned unchanged.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError(entity + " non trovato")
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflictError(entity + " già esistente")
	case errors.Is(err, repository.ErrInvalidReference):
		return apperrors.NewInvalidInputError("riferimento non valido per " + entity)
	}
	return err
}
