package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// LimitExecutor corta o fluxo após count linhas.
type LimitExecutor struct {
	child     Executor
	remaining int64
}

func NewLimitExecutor(child Executor, count int64) *LimitExecutor {
	return &LimitExecutor{child: child, remaining: count}
}

func (l *LimitExecutor) Schema() *arrow.Schema {
	return l.child.Schema()
}

func (l *LimitExecutor) Next(ctx context.Context) (arrow.Record, error) {
	if l.remaining <= 0 {
		return nil, ErrNoMoreBatches
	}
	batch, err := l.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if batch.NumRows() <= l.remaining {
		l.remaining -= batch.NumRows()
		return batch, nil
	}
	sliced := batch.NewSlice(0, l.remaining)
	batch.Release()
	l.remaining = 0
	return sliced, nil
}

func (l *LimitExecutor) Close() error {
	return l.child.Close()
}
