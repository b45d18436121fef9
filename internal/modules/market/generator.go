package market

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// tickerProfile pairs a base price with a daily volatility.
type tickerProfile struct {
	BasePrice  float64
	Volatility float64
}

// tickerProfiles holds realistic-ish base prices and volatilities for the
// tickers the simulator knows about. Unknown tickers use defaultProfile.
var tickerProfiles = map[string]tickerProfile{
	"AAPL":  {180.0, 0.02},
	"GOOGL": {140.0, 0.022},
	"MSFT":  {370.0, 0.018},
	"AMZN":  {175.0, 0.025},
	"TSLA":  {240.0, 0.04},
	"NVDA":  {480.0, 0.035},
	"JPM":   {170.0, 0.015},
	"JNJ":   {155.0, 0.012},
	"SPY":   {470.0, 0.01},
	"BND":   {72.0, 0.003},
}

var defaultProfile = tickerProfile{BasePrice: 100.0, Volatility: 0.02}

// DefaultTickers is the ticker set used when a run does not specify one.
var DefaultTickers = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

const (
	// drift is the slight upward bias of the geometric process, shared by
	// all tickers.
	drift = 0.0002

	minPrice = 0.01

	meanVolume   = 10_000_000
	stdDevVolume = 3_000_000
	minVolume    = 100_000
)

// bar is an unassembled OHLCV tuple within a single ticker's series.
type bar struct {
	open, high, low, closePrice float64
	volume                      int64
}

// Generate produces synthetic daily market data for the given tickers over
// [start, end], one Snapshot per weekday. The series is fully determined by
// the ticker list (including its order), and the date range: repeated calls
// with identical inputs yield identical values. An empty range yields an
// empty slice.
func Generate(tickers []string, start, end time.Time) []Snapshot {
	days := TradingDays(start, end)
	numDays := len(days)
	if numDays == 0 {
		return []Snapshot{}
	}

	tickerBars := make(map[string][]bar, len(tickers))
	for i, ticker := range tickers {
		profile, ok := tickerProfiles[ticker]
		if !ok {
			profile = defaultProfile
		}
		seed := seriesSeed(ticker, start, i)
		tickerBars[ticker] = generateSeries(profile, numDays, seed)
	}

	snapshots := make([]Snapshot, 0, numDays)
	for dayIdx, day := range days {
		prices := make(map[string]PriceBar, len(tickers))
		for _, ticker := range tickers {
			b := tickerBars[ticker][dayIdx]
			prices[ticker] = PriceBar{
				Ticker: ticker,
				Date:   day,
				Open:   b.open,
				High:   b.high,
				Low:    b.low,
				Close:  b.closePrice,
				Volume: b.volume,
			}
		}
		snapshots = append(snapshots, Snapshot{
			Date:      day,
			Prices:    prices,
			DayIndex:  dayIdx,
			TotalDays: numDays,
		})
	}

	return snapshots
}

// TradingDays returns the weekdays in [start, end] in calendar order.
func TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		wd := current.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			days = append(days, current)
		}
	}
	return days
}

// seriesSeed derives a deterministic PRNG seed from the ticker symbol, the
// run's start date and the ticker's position in the request.
func seriesSeed(ticker string, start time.Time, ordinal int) int64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	h.Write([]byte(start.Format("2006-01-02")))
	return int64(h.Sum64()) + int64(ordinal)
}

// generateSeries walks a geometric Brownian motion over numDays, producing
// one OHLCV bar per day. OHLC values are rounded to cents; the unrounded
// close is carried forward as the next day's open.
func generateSeries(profile tickerProfile, numDays int, seed int64) []bar {
	rng := rand.New(rand.NewSource(seed))

	bars := make([]bar, 0, numDays)
	price := profile.BasePrice

	for day := 0; day < numDays; day++ {
		dailyReturn := drift + profile.Volatility*rng.NormFloat64()
		openPrice := price
		closePrice := price * math.Exp(dailyReturn)

		// Intraday range scales with the open-close spread.
		intradayVol := math.Abs(closePrice-openPrice) * uniform(rng, 0.5, 2.0)
		high := math.Max(openPrice, closePrice) + intradayVol*uniform(rng, 0.1, 0.5)
		low := math.Min(openPrice, closePrice) - intradayVol*uniform(rng, 0.1, 0.5)
		low = math.Max(low, minPrice)

		volume := int64(rng.NormFloat64()*stdDevVolume + meanVolume)
		if volume < minVolume {
			volume = minVolume
		}

		bars = append(bars, bar{
			open:       round2(openPrice),
			high:       round2(high),
			low:        round2(low),
			closePrice: round2(closePrice),
			volume:     volume,
		})
		price = closePrice
	}

	return bars
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
