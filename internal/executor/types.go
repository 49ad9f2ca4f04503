package executor

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// ErrNoMoreBatches indica o fim do fluxo de dados.
var ErrNoMoreBatches = errors.New("executor: não há mais batches")

// Executor define a interface comum de operadores.
// O record devolvido por Next pertence a quem chamou, que deve liberá-lo com Release.
type Executor interface {
	Schema() *arrow.Schema
	Next(ctx context.Context) (arrow.Record, error)
	Close() error
}

// RowView permite ler valores de uma linha durante filtros.
type RowView interface {
	Value(column int) (columnar.Value, error)
}

// Predicate avalia se uma linha deve ser mantida.
type Predicate func(RowView) (bool, error)

// Drain consome o executor até o fim e devolve todos os records produzidos.
func Drain(ctx context.Context, exec Executor) ([]arrow.Record, error) {
	var out []arrow.Record
	for {
		rec, err := exec.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrNoMoreBatches) {
				return out, nil
			}
			for _, r := range out {
				r.Release()
			}
			return nil, err
		}
		out = append(out, rec)
	}
}
