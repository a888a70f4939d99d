package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"fruition-api/internal/fruit"
	"fruition-api/internal/model"
	"fruition-api/internal/repository"
	"fruition-api/pkg/clock"
)

const topFruitCount = 3

// FruitCount is a fruit and the units consumed of it.
type FruitCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BenefitCount is a benefit tag and the units consumed that carry it.
type BenefitCount struct {
	Benefit string `json:"benefit"`
	Count   int    `json:"count"`
}

// Badge is an achievement derived from the ledger.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Unlocked    bool   `json:"unlocked"`
}

// MonthlyReport aggregates one calendar month.
type MonthlyReport struct {
	Month       string `json:"month"`
	Year        int    `json:"year"`
	DisplayName string `json:"display_name"`
	Consumed    int    `json:"consumed"`
	Wasted      int    `json:"wasted"`
	Efficiency  int    `json:"efficiency"`
	Persona     string `json:"persona"`

	monthNum time.Month
}

// Summary is the report view of a user's ledger.
type Summary struct {
	TotalConsumed  int             `json:"total_consumed"`
	TotalWasted    int             `json:"total_wasted"`
	TotalProcessed int             `json:"total_processed"`
	Efficiency     int             `json:"efficiency"`
	ConsumedToday  int             `json:"consumed_today"`
	TopFruits      []FruitCount    `json:"top_fruits"`
	Benefits       []BenefitCount  `json:"benefits"`
	Badges         []Badge         `json:"badges"`
	Monthly        []MonthlyReport `json:"monthly"`
}

// StatsAggregator reads and summarizes a user's ledger.
type StatsAggregator struct {
	ledger repository.LedgerRepository
	clock  clock.Clock
}

// NewStatsAggregator creates a stats aggregator.
func NewStatsAggregator(ledger repository.LedgerRepository, clk clock.Clock) *StatsAggregator {
	return &StatsAggregator{ledger: ledger, clock: clk}
}

// ComputeStats returns the full, unfiltered consumption and waste history
// of userID.
func (s *StatsAggregator) ComputeStats(ctx context.Context, userID string) (*model.Stats, error) {
	if userID == "" {
		return &model.Stats{Consumed: []model.ConsumptionEvent{}, Wasted: []model.WasteEvent{}}, nil
	}
	consumed, err := s.ledger.ListConsumption(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read consumption history: %w", err)
	}
	wasted, err := s.ledger.ListWaste(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read waste history: %w", err)
	}
	return &model.Stats{Consumed: consumed, Wasted: wasted}, nil
}

// Summarize reads the ledger of userID and builds its summary with day
// and month boundaries in loc.
func (s *StatsAggregator) Summarize(ctx context.Context, userID string, loc *time.Location) (*Summary, error) {
	stats, err := s.ComputeStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := BuildSummary(stats, s.clock.Now(), loc)
	return &summary, nil
}

// ComputeEfficiency is the share of processed units that were consumed,
// as a rounded percentage. No activity counts as 100.
func ComputeEfficiency(consumed, wasted int) int {
	total := consumed + wasted
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(consumed) * 100 / float64(total)))
}

// Persona names a month by its consumption pattern.
func Persona(consumed, wasted int) string {
	total := consumed + wasted
	efficiency := ComputeEfficiency(consumed, wasted)
	switch {
	case total == 0:
		return "The Hibernator"
	case efficiency >= 95 && total > 20:
		return "Eco-Warrior"
	case efficiency >= 80:
		return "Fruit Enthusiast"
	case wasted > consumed:
		return "Compost King"
	default:
		return "Balanced Eater"
	}
}

// units treats a missing amount as one unit.
func units(amount int) int {
	if amount <= 0 {
		return 1
	}
	return amount
}

// BuildSummary is the pure part of Summarize.
func BuildSummary(stats *model.Stats, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)

	var sum Summary
	fruitCounts := make(map[string]int)
	benefitCounts := make(map[string]int)
	months := make(map[string]*MonthlyReport)

	month := func(t time.Time) *MonthlyReport {
		t = t.In(loc)
		key := t.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthlyReport{
				Month:       t.Month().String(),
				Year:        t.Year(),
				DisplayName: fmt.Sprintf("%s %d", t.Month(), t.Year()),
				monthNum:    t.Month(),
			}
			months[key] = m
		}
		return m
	}

	for _, e := range stats.Consumed {
		n := units(e.Amount)
		sum.TotalConsumed += n
		if !e.ConsumedAt.In(loc).Before(today) {
			sum.ConsumedToday += n
		}

		name := fruit.Normalize(e.FruitName)
		fruitCounts[name] += n
		if p, ok := fruit.Lookup(name); ok {
			for _, b := range p.Benefits {
				benefitCounts[b] += n
			}
		}
		month(e.ConsumedAt).Consumed += n
	}

	for _, e := range stats.Wasted {
		n := units(e.Amount)
		sum.TotalWasted += n
		month(e.WastedAt).Wasted += n
	}

	sum.TotalProcessed = sum.TotalConsumed + sum.TotalWasted
	sum.Efficiency = ComputeEfficiency(sum.TotalConsumed, sum.TotalWasted)

	sum.TopFruits = make([]FruitCount, 0, len(fruitCounts))
	for name, n := range fruitCounts {
		sum.TopFruits = append(sum.TopFruits, FruitCount{Name: name, Count: n})
	}
	sort.Slice(sum.TopFruits, func(i, j int) bool {
		a, b := sum.TopFruits[i], sum.TopFruits[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if len(sum.TopFruits) > topFruitCount {
		sum.TopFruits = sum.TopFruits[:topFruitCount]
	}

	sum.Benefits = make([]BenefitCount, 0, len(benefitCounts))
	for b, n := range benefitCounts {
		sum.Benefits = append(sum.Benefits, BenefitCount{Benefit: b, Count: n})
	}
	sort.Slice(sum.Benefits, func(i, j int) bool {
		a, b := sum.Benefits[i], sum.Benefits[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Benefit < b.Benefit
	})

	sum.Badges = []Badge{
		{ID: "eco", Name: "Eco Warrior", Description: "> 90% efficiency", Icon: "🌍",
			Unlocked: sum.TotalProcessed > 10 && sum.Efficiency > 90},
		{ID: "ninja", Name: "Fruit Ninja", Description: "50+ fruits eaten", Icon: "🥷",
			Unlocked: sum.TotalConsumed >= 50},
		{ID: "starter", Name: "Fresh Start", Description: "First fruit logged", Icon: "🌱",
			Unlocked: sum.TotalConsumed > 0},
		{ID: "master", Name: "Zen Master", Description: "Zero waste for 7 days", Icon: "🧘",
			Unlocked: false}, // not awarded yet
	}

	sum.Monthly = make([]MonthlyReport, 0, len(months))
	for _, m := range months {
		m.Efficiency = ComputeEfficiency(m.Consumed, m.Wasted)
		m.Persona = Persona(m.Consumed, m.Wasted)
		sum.Monthly = append(sum.Monthly, *m)
	}
	sort.Slice(sum.Monthly, func(i, j int) bool {
		a, b := sum.Monthly[i], sum.Monthly[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.monthNum > b.monthNum
	})

	return sum
}
