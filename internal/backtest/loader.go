package backtest

import (
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// csvTime parses the time column: RFC 3339, a date, or unix seconds.
type csvTime struct {
	time.Time
}

func (t *csvTime) UnmarshalCSV(raw string) error {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()

			return nil
		}
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t.Time = time.Unix(seconds, 0).UTC()

		return nil
	}

	return errors.Newf(errors.ErrCodeMarketDataParseFailed, "unparseable time %q", raw)
}

type csvBar struct {
	Time   csvTime         `csv:"time"`
	Symbol string          `csv:"symbol"`
	Open   decimal.Decimal `csv:"open"`
	High   decimal.Decimal `csv:"high"`
	Low    decimal.Decimal `csv:"low"`
	Close  decimal.Decimal `csv:"close"`
	Volume decimal.Decimal `csv:"volume"`
}

// LoadBarsCSV reads an OHLCV file into bars sorted by time. symbol fills in
// rows whose symbol column is empty.
func LoadBarsCSV(path, symbol string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "cannot open %s", path)
	}
	defer file.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "cannot parse %s", path)
	}

	bars := make([]types.Bar, 0, len(rows))

	for _, row := range rows {
		rowSymbol := row.Symbol
		if rowSymbol == "" {
			rowSymbol = symbol
		}

		bars = append(bars, types.Bar{
			Time:   row.Time.Time,
			Symbol: rowSymbol,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	return bars, nil
}

// MarshalCSV writes the time column in RFC 3339.
func (t csvTime) MarshalCSV() (string, error) {
	return t.UTC().Format(time.RFC3339), nil
}

// SaveBarsCSV writes bars to a CSV file in the format LoadBarsCSV reads.
func SaveBarsCSV(path string, bars []types.Bar) error {
	rows := make([]*csvBar, 0, len(bars))
	for _, bar := range bars {
		rows = append(rows, &csvBar{
			Time:   csvTime{Time: bar.Time},
			Symbol: bar.Symbol,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultStoreFailed, err, "cannot create %s", path)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return errors.Wrapf(errors.ErrCodeResultStoreFailed, err, "cannot write %s", path)
	}

	return nil
}
