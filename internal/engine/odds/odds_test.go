package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImplied_EvenPools(t *testing.T) {
	// dois pilotos com 1.00 cada, sem taxa: odd 2.0 para ambos
	odd := Implied(100, 200, 0, 100.0)
	assert.InDelta(t, 2.0, odd, 0.0001)
}

func TestImplied_WithPlatformFee(t *testing.T) {
	// fee 10%, driverPool 1.0, totalPool 5.0 -> 5.0*0.9/1.0 = 4.5
	odd := Implied(100, 500, 1000, 100.0)
	assert.InDelta(t, 4.5, odd, 0.0001)
}

func TestImplied_EmptyDriverPool(t *testing.T) {
	// ninguém apostou no piloto: retorna o teto, nunca divide por zero
	assert.Equal(t, 50.0, Implied(0, 500, 500, 50.0))
}

func TestImplied_EmptyRacePool(t *testing.T) {
	assert.Equal(t, 50.0, Implied(0, 0, 500, 50.0))
}

func TestImplied_CappedAtCeiling(t *testing.T) {
	// pool muito desequilibrado: odd bruta 1000x, capada no teto
	assert.Equal(t, 100.0, Implied(1, 100000, 0, 100.0))
}

func TestImplied_FavoriteBelowOne(t *testing.T) {
	// favorito absoluto com taxa: odd pode ficar abaixo de 1.0 (pool rake)
	odd := Implied(900, 1000, 500, 100.0)
	assert.InDelta(t, 1.0555, odd, 0.001)
}

func TestPayout_Rounding(t *testing.T) {
	assert.Equal(t, int64(200), Payout(100, 2.0))
	assert.Equal(t, int64(450), Payout(100, 4.5))
	// arredonda pro cent mais próximo
	assert.Equal(t, int64(333), Payout(100, 3.333))
	assert.Equal(t, int64(334), Payout(100, 3.335))
}

func TestImplied_Deterministic(t *testing.T) {
	a := Implied(730, 4810, 500, 100.0)
	b := Implied(730, 4810, 500, 100.0)
	assert.Equal(t, a, b)
}
