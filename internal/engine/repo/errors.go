package repo

import "errors"

// Erros de validação: rejeitados sem nenhuma escrita.
var (
	ErrRaceNotFound  = errors.New("race not found")
	ErrBetNotFound   = errors.New("bet not found")
	ErrUnknownDriver = errors.New("driver not registered in race")
	ErrInvalidStake  = errors.New("stake out of bounds")
)

// Erros de estado: idempotentes, distinguíveis pelo chamador.
var (
	ErrRaceNotOpen     = errors.New("race not open for betting")
	ErrAlreadySettled  = errors.New("race already settled")
	ErrAlreadyResolved = errors.New("bet already resolved")
	ErrNotClaimable    = errors.New("bet not claimable")
)

// Erros de autorização: verificados antes de qualquer inspeção de estado.
var (
	ErrNotAuthorized = errors.New("caller is not the oracle")
	ErrNotOwner      = errors.New("caller is not the bet owner")
)
