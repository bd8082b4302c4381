package domain

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWeight indica violação de contrato: peso < 1.
// Não é condição de runtime; implementações entram em pânico com esse erro.
var ErrInvalidWeight = errors.New("ratelimit: weight must be >= 1")

// Clock abstrai o relógio para que testes possam avançar o tempo de forma determinística.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapta uma função para Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock usa time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// QuotaDecision é o resultado de uma admissão (ou de uma consulta) numa cota
// de N eventos por janela deslizante.
type QuotaDecision struct {
	Allowed bool
	// Limit é o máximo de eventos (soma de pesos) por janela.
	Limit int
	// Used é a soma dos pesos ainda dentro da janela, já contando o evento admitido.
	Used int
	// Remaining é a capacidade livre após a decisão.
	Remaining int
	// ResetIn é o tempo até a entrada mais antiga sair da janela. 0 quando o log está vazio.
	ResetIn time.Duration
}

// ResetInSeconds arredonda ResetIn para cima, em segundos.
func (d QuotaDecision) ResetInSeconds() int {
	return CeilSeconds(d.ResetIn)
}

// CeilSeconds converte d para segundos inteiros arredondando para cima; nunca negativo.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// QuotaLimiter é a cota global de um recurso caro (ex: chamadas ao modelo de visão).
//
// Reserve faz prune+check+append de forma atômica: só registra o evento se houver capacidade.
// Status é uma consulta sem efeito sobre a capacidade futura.
// O erro só existe para backends remotos (ex: Redis); rejeição por cota é dado, não erro.
type QuotaLimiter interface {
	Reserve(ctx context.Context, weight int) (QuotaDecision, error)
	Status(ctx context.Context) (QuotaDecision, error)
}

// QuotaRequest descreve uma tentativa de consumir a cota.
type QuotaRequest struct {
	Key    Key
	Weight int
	Method string
	Path   string
}
