// Package ratelimit fornece adapters HTTP (net/http) para o controle de admissão
// do gateway de análise de plantas.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (limite por cliente, cota global, concorrência)
//   - infra: implementações concretas (janela deslizante em memória/Redis, token
//     bucket, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + headers
//
// Fluxo numa análise:
//
//  1. Token bucket por cliente (Middleware) barra rajadas de um mesmo IP/chave
//  2. ConcurrencyMiddleware limita análises simultâneas (503)
//  3. O handler consulta a cota global (application.QuotaService); bloqueado => 429
//  4. Permitido => chama o modelo de visão
package ratelimit
