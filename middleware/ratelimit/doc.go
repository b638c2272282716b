// Package ratelimit fornece adapters HTTP (net/http) para o controle de admissão
// dos endpoints de escrita do carrinho, além do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (policy, janela deslizante, penalidade) sem net/http
//   - infra: implementações concretas (Redis, semáforo, arquivo YAML)
//   - obs: logger zerolog e métricas Prometheus
//   - ratelimit (este pacote): middlewares HTTP + resolução de identidade + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Resolve o endpoint (padrão da rota) e a identidade (usuário autenticado ou IP)
//   2) Chama a camada application para obter a decisão
//   3) Se rejeitado, responde 429 com Retry-After = janela da policy
//   4) Caso contrário (inclusive fail-open), chama o próximo handler
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como REDIS_ADDR, POLICY_FILE, TRUST_XFF, ALLOWLIST_IPS e CONCURRENCY_MAX.
package ratelimit
