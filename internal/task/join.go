package task

import (
	"optionsql/internal/broker"

	"github.com/yanun0323/logs"
)

func (p JoinPolicy) join(symbol string, strikes []*broker.Future[StrikeRecord]) *broker.Future[[]OptionRecord] {
	if p == Partial {
		return broker.Then(broker.Settle(strikes), func(outcomes []broker.Outcome[StrikeRecord]) ([]OptionRecord, error) {
			records := make([]OptionRecord, 0, 2*len(outcomes))
			var (
				dropped  int
				firstErr error
			)
			for _, o := range outcomes {
				if o.Err != nil {
					dropped++
					if firstErr == nil {
						firstErr = o.Err
					}
					continue
				}
				records = append(records, o.Value.Records()...)
			}
			if dropped > 0 {
				logs.Errorf("%s option chain: dropped %d of %d strikes, first err: %+v", symbol, dropped, len(outcomes), firstErr)
			}
			return records, nil
		})
	}

	return broker.Then(broker.AllOf(strikes), func(pairs []StrikeRecord) ([]OptionRecord, error) {
		records := make([]OptionRecord, 0, 2*len(pairs))
		for _, pair := range pairs {
			records = append(records, pair.Records()...)
		}
		return records, nil
	})
}
