package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
)

// Registry define as operações do motor usadas na liquidação.
type Registry interface {
	ResolveRace(ctx context.Context, authority, raceID, winningDriverID string) (*repo.Race, error)
	GetRace(ctx context.Context, raceID string) (*repo.Race, error)
	ListPendingBets(ctx context.Context, raceID string) ([]repo.Bet, error)
	MarkResolved(ctx context.Context, betID string, won bool, winOdds float64) (*repo.Bet, error)
}

// Coordinator executa a liquidação de uma corrida: transiciona a corrida para
// SETTLED e varre todas as apostas PENDING, marcando cada uma como WON/LOST.
//
// A varredura é segura para reexecução: cada MarkResolved é um check-and-set
// que rejeita apostas fora de PENDING, então uma falha no meio deixa a corrida
// recuperável — rodar de novo só toca o que ainda está pendente.
type Coordinator struct {
	Log      *zap.Logger
	Registry Registry
}

// Result resume uma liquidação concluída.
type Result struct {
	Race    *repo.Race
	Bets    []repo.Bet
	Won     int
	Lost    int
	Resumed bool // true quando a corrida já estava SETTLED e a varredura foi retomada
}

// Settle liquida a corrida com o piloto vencedor informado.
//
// Uma corrida já SETTLED sem apostas pendentes falha com ErrAlreadySettled —
// liquidação é one-shot. Se a corrida está SETTLED mas restam apostas PENDING
// (falha parcial anterior), a varredura é retomada com o vencedor e a odd já
// gravados na corrida; o oráculo não pode trocar o resultado nesse caminho.
func (c *Coordinator) Settle(ctx context.Context, authority, raceID, winningDriverID string) (*Result, error) {
	race, err := c.Registry.ResolveRace(ctx, authority, raceID, winningDriverID)
	if err != nil {
		if !errors.Is(err, repo.ErrAlreadySettled) {
			return nil, err
		}
		resumed, rerr := c.resume(ctx, raceID)
		if rerr != nil {
			return nil, rerr
		}
		if resumed == nil {
			return nil, err // já liquidada e sem pendências: one-shot de verdade
		}
		return resumed, nil
	}

	res, err := c.sweep(ctx, race)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resume retoma uma varredura interrompida, ou retorna nil se não há pendências.
func (c *Coordinator) resume(ctx context.Context, raceID string) (*Result, error) {
	race, err := c.Registry.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	pending, err := c.Registry.ListPendingBets(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	c.Log.Warn("resuming interrupted settlement sweep",
		zap.String("raceId", raceID),
		zap.Int("pending", len(pending)),
	)
	res, err := c.sweep(ctx, race)
	if err != nil {
		return nil, err
	}
	res.Resumed = true
	return res, nil
}

// sweep varre as apostas PENDING da corrida e resolve cada uma.
// O predicado de vitória (driver == vencedor) é o ponto de extensão para
// mercados além do win-only.
func (c *Coordinator) sweep(ctx context.Context, race *repo.Race) (*Result, error) {
	pending, err := c.Registry.ListPendingBets(ctx, race.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{Race: race}
	for _, b := range pending {
		won := b.DriverID == race.WinningDriverID
		resolved, err := c.Registry.MarkResolved(ctx, b.ID, won, race.WinOdds)
		if err != nil {
			if errors.Is(err, repo.ErrAlreadyResolved) {
				// resolvida por uma varredura concorrente: não reconta
				continue
			}
			// aborta aqui; o que já foi marcado fica, a reexecução pega o resto
			return nil, err
		}
		res.Bets = append(res.Bets, *resolved)
		if won {
			res.Won++
		} else {
			res.Lost++
		}
	}

	c.Log.Info("settlement sweep finished",
		zap.String("raceId", race.ID),
		zap.String("winner", race.WinningDriverID),
		zap.Float64("winOdds", race.WinOdds),
		zap.Int("won", res.Won),
		zap.Int("lost", res.Lost),
	)
	return res, nil
}
