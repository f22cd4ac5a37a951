package ops

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"optionsql/internal/model"
	"optionsql/pkg/exception"

	"github.com/bytedance/sonic"
)

type tickerFile struct {
	Segments map[string][]string `json:"segments"`
}

// LoadTickers reads the collection universe from a JSON file of the form
// {"segments": {"tech": ["AAPL", "MSFT"]}}.
func LoadTickers(path string) ([]model.Ticker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tickers, err := ParseTickers(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tickers, nil
}

// ParseTickers decodes a tickers document. Segments are visited in name
// order and a symbol listed twice keeps its first segment.
func ParseTickers(data []byte) ([]model.Ticker, error) {
	var file tickerFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", exception.ErrConfigInvalid, err)
	}

	segments := make([]string, 0, len(file.Segments))
	for seg := range file.Segments {
		segments = append(segments, seg)
	}
	sort.Strings(segments)

	seen := make(map[string]struct{})
	var out []model.Ticker
	for _, seg := range segments {
		for _, raw := range file.Segments[seg] {
			symbol := strings.ToUpper(strings.TrimSpace(raw))
			if symbol == "" {
				continue
			}
			if _, ok := seen[symbol]; ok {
				continue
			}
			seen[symbol] = struct{}{}
			out = append(out, model.Ticker{Symbol: symbol, Segment: seg})
		}
	}
	if len(out) == 0 {
		return nil, exception.ErrConfigEmptyTicker
	}
	return out, nil
}
