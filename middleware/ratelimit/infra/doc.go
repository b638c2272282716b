// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisWindowStore: janela deslizante em sorted set, aplicada via MULTI/EXEC
//   - RedisViolationCounter / RedisViolationLog: contador e registros de violação
//   - ChanPool: semáforo simples para limite de concorrência
//   - ParsePolicyFile: policies declaradas em YAML
package infra
