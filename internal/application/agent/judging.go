package agent

// judging.go — worker pool para pedir veredictos en paralelo.
//
// Cada veredicto es una llamada externa lenta; el ledger nunca se toca desde
// aquí, así que no hay locks retenidos durante la espera.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/ports"
)

const defaultJudgeWorkers = 4

// judged empareja un mercado con su veredicto.
type judged struct {
	market  domain.Market
	verdict domain.Verdict
}

// judgeConcurrent pide un veredicto por mercado usando un worker pool.
// Los resultados conservan el orden de entrada; los mercados cuyo veredicto
// falla se descartan.
func judgeConcurrent(
	ctx context.Context,
	judge ports.VerdictSource,
	markets []domain.Market,
	workers int,
) []judged {
	if workers <= 0 {
		workers = defaultJudgeWorkers
	}

	type result struct {
		idx int
		v   domain.Verdict
		ok  bool
	}

	workCh := make(chan int, len(markets))
	resultCh := make(chan result, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < min(workers, len(markets)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{idx: idx}
					continue
				}
				v, err := judge.Judge(ctx, markets[idx])
				if err != nil {
					slog.Warn("agent: verdict failed", "market", markets[idx].ID, "err", err)
					resultCh <- result{idx: idx}
					continue
				}
				resultCh <- result{idx: idx, v: v, ok: true}
			}
		}()
	}

	for i := range markets {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	slots := make([]*domain.Verdict, len(markets))
	for r := range resultCh {
		if r.ok {
			v := r.v
			slots[r.idx] = &v
		}
	}

	out := make([]judged, 0, len(markets))
	for i, v := range slots {
		if v != nil {
			out = append(out, judged{market: markets[i], verdict: *v})
		}
	}

	slog.Debug("agent: verdicts collected",
		"markets", len(markets),
		"verdicts", len(out),
		"workers", workers,
	)
	return out
}
