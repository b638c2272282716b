// Package application contém os casos de uso do controle de admissão:
// resolução de policy, decisão da janela deslizante, escalonamento de
// penalidade e registro best-effort de violações.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
// Ex.: Service.Check(ctx, req) retorna uma Decision (admitted/rejected/degraded).
package application
