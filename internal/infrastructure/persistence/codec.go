package persistence

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// api is the sonic configuration shared by every store. Numbers decode as
// float64, which the strategy parameter getters accept.
var api = sonic.ConfigStd

func encode(rec strategy.Record) ([]byte, error) {
	data, err := api.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %q: %w", rec.Name, err)
	}
	return data, nil
}

func decode(data []byte) (strategy.Record, error) {
	var rec strategy.Record
	if err := api.Unmarshal(data, &rec); err != nil {
		return strategy.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
