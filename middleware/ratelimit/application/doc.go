// Package application contém os casos de uso do gateway: limite por cliente,
// cota global de janela deslizante e limite de concorrência.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: QuotaService.Admit devolve uma domain.QuotaDecision (allow/deny + restante + reset).
package application
