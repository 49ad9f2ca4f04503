package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

type batchRow struct {
	rec   arrow.Record
	index int
}

func (r batchRow) Value(column int) (columnar.Value, error) {
	if column < 0 || column >= int(r.rec.NumCols()) {
		return columnar.Value{}, fmt.Errorf("coluna %d não encontrada", column)
	}
	return columnar.ValueAt(r.rec.Column(column), r.index)
}
