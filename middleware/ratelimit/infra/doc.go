// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingLog: cota N eventos / janela deslizante em memória (log ordenado por tempo)
//   - RedisWindow: a mesma cota compartilhada entre réplicas (ZSET + Lua no Redis)
//   - Store: token bucket por cliente usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore, RedisStatsStore, PrometheusStats: contadores de decisões
package infra
