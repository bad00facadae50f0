package stream

import (
	"fmt"

	"github.com/tarungka/wireflow/value"
)

// Epoch is the logical timestamp attached to an item at ingestion. Epochs
// are non-decreasing per input source.
type Epoch uint64

// Record is an item together with its epoch.
type Record struct {
	Epoch Epoch
	Value value.Value
}

// At builds a record.
func At(epoch Epoch, v value.Value) Record {
	return Record{Epoch: epoch, Value: v}
}

func (r Record) String() string {
	if r.Value == nil {
		return fmt.Sprintf("(%d, <nil>)", r.Epoch)
	}
	return fmt.Sprintf("(%d, %s)", r.Epoch, r.Value)
}
