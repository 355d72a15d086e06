package odds

// Cálculo de odds implícitas do pool parimutuel.
//
// A odd de um piloto é o inverso da fatia dele no pool, descontada a taxa da
// plataforma: odd = totalPool * (1 - fee) / driverPool. Função pura, sempre
// recalculada sob demanda a partir dos pools correntes — nunca armazenada de
// forma que possa ficar defasada em relação ao pool.

// Implied retorna a odd decimal implícita de um piloto.
//
// feeBps é a taxa da plataforma em basis points (500 = 5%).
// ceiling é a odd máxima retornada quando o pool do piloto está vazio
// (ninguém apostou nele ainda — a divisão por zero vira teto, não erro).
func Implied(driverPoolCents, totalPoolCents int64, feeBps int64, ceiling float64) float64 {
	if driverPoolCents <= 0 || totalPoolCents <= 0 {
		return ceiling
	}

	odd := float64(totalPoolCents) * feeFactor(feeBps) / float64(driverPoolCents)
	if odd > ceiling {
		return ceiling
	}
	return odd
}

// Payout retorna o valor a pagar (em cents) para uma aposta vencedora,
// dado o stake e a odd resolvida do pool.
func Payout(stakeCents int64, odd float64) int64 {
	return int64(float64(stakeCents)*odd + 0.5)
}

func feeFactor(feeBps int64) float64 {
	if feeBps < 0 {
		feeBps = 0
	}
	return float64(10000-feeBps) / 10000.0
}
