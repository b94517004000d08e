package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/withholding"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const topSupplierLimit = 5

// --- DTOs ---

type StatisticsFilter struct {
	ClientID string
	From     string // YYYY-MM-DD, default first day of the current month
	To       string // YYYY-MM-DD, default today
	GroupBy  string // week, month, quarter, year
}

// PeriodTotals sums the payments dated in one period. Amounts are the
// retentions as recorded, not the expected ones.
type PeriodTotals struct {
	Period        string              `json:"period"`
	PaymentCount  int                 `json:"payment_count"`
	TotalGross    decimal.Decimal     `json:"total_gross"`
	Withheld      withholding.Amounts `json:"withheld"`
	TotalWithheld decimal.Decimal     `json:"total_withheld"`
}

type SupplierRanking struct {
	SupplierID    string          `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	PaymentCount  int             `json:"payment_count"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	TotalWithheld decimal.Decimal `json:"total_withheld"`
}

type StatisticsResponse struct {
	From         string            `json:"from"`
	To           string            `json:"to"`
	GroupBy      string            `json:"group_by"`
	Periods      []PeriodTotals    `json:"periods"`
	TopSuppliers []SupplierRanking `json:"top_suppliers"`
	Runs         model.RunSummary  `json:"runs"`
}

// --- Interface ---

type StatisticsService interface {
	GetStatistics(ctx context.Context, filter StatisticsFilter) (StatisticsResponse, error)
}

// --- Implementation ---

type statisticsService struct {
	statsRepo repository.StatisticsRepository
	now       func() time.Time
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo, now: time.Now}
}

func (s *statisticsService) GetStatistics(ctx context.Context, filter StatisticsFilter) (StatisticsResponse, error) {
	groupBy := filter.GroupBy
	switch groupBy {
	case "week", "month", "quarter", "year":
	case "":
		groupBy = "month"
	default:
		return StatisticsResponse{}, validationError("invalid group_by %q: must be week, month, quarter or year", filter.GroupBy)
	}

	var clientID *uuid.UUID
	if filter.ClientID != "" {
		id, err := uuid.Parse(filter.ClientID)
		if err != nil {
			return StatisticsResponse{}, validationError("invalid client_id")
		}
		clientID = &id
	}

	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if filter.From != "" {
		t, err := time.Parse(dateLayout, filter.From)
		if err != nil {
			return StatisticsResponse{}, validationError("invalid from date (expected YYYY-MM-DD)")
		}
		start = t
	}
	if filter.To != "" {
		t, err := time.Parse(dateLayout, filter.To)
		if err != nil {
			return StatisticsResponse{}, validationError("invalid to date (expected YYYY-MM-DD)")
		}
		end = t
	}
	if end.Before(start) {
		return StatisticsResponse{}, validationError("to date is before from date")
	}
	// include the whole last day
	endOfDay := end.Add(24*time.Hour - time.Nanosecond)

	payments, err := s.statsRepo.PaymentsInRange(ctx, clientID, start, endOfDay)
	if err != nil {
		return StatisticsResponse{}, err
	}
	runs, err := s.statsRepo.GetRunSummary(ctx, clientID, start, endOfDay)
	if err != nil {
		return StatisticsResponse{}, err
	}

	return StatisticsResponse{
		From:         start.Format(dateLayout),
		To:           end.Format(dateLayout),
		GroupBy:      groupBy,
		Periods:      periodTotals(payments, groupBy),
		TopSuppliers: topSuppliers(payments, topSupplierLimit),
		Runs:         runs,
	}, nil
}

// --- Helpers ---

func periodKey(t time.Time, groupBy string) string {
	switch groupBy {
	case "week":
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case "quarter":
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case "year":
		return fmt.Sprintf("%d", t.Year())
	}
	return t.Format("2006-01")
}

func withheldAmounts(p model.Payment) withholding.Amounts {
	return withholding.Amounts{
		IR:     p.WithheldIR,
		PIS:    p.WithheldPIS,
		COFINS: p.WithheldCOFINS,
		CSLL:   p.WithheldCSLL,
		ISS:    p.WithheldISS,
	}
}

// periodTotals expects payments sorted by date and returns periods in order.
func periodTotals(payments []model.Payment, groupBy string) []PeriodTotals {
	out := make([]PeriodTotals, 0)
	index := make(map[string]int)

	for _, p := range payments {
		key := periodKey(p.PaymentDate, groupBy)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, PeriodTotals{Period: key, TotalGross: decimal.Zero, TotalWithheld: decimal.Zero})
		}
		w := withheldAmounts(p)
		out[i].PaymentCount++
		out[i].TotalGross = out[i].TotalGross.Add(p.GrossAmount)
		out[i].Withheld = out[i].Withheld.Add(w)
		out[i].TotalWithheld = out[i].TotalWithheld.Add(w.Sum())
	}
	return out
}

// topSuppliers ranks suppliers by gross paid, then by name.
func topSuppliers(payments []model.Payment, limit int) []SupplierRanking {
	index := make(map[uuid.UUID]int)
	var out []SupplierRanking

	for _, p := range payments {
		i, ok := index[p.SupplierID]
		if !ok {
			name := ""
			if p.Supplier != nil {
				name = p.Supplier.Name
			}
			i = len(out)
			index[p.SupplierID] = i
			out = append(out, SupplierRanking{
				SupplierID: p.SupplierID.String(), SupplierName: name,
				TotalGross: decimal.Zero, TotalWithheld: decimal.Zero,
			})
		}
		out[i].PaymentCount++
		out[i].TotalGross = out[i].TotalGross.Add(p.GrossAmount)
		out[i].TotalWithheld = out[i].TotalWithheld.Add(withheldAmounts(p).Sum())
	}

	sort.SliceStable(out, func(a, b int) bool {
		if c := out[a].TotalGross.Cmp(out[b].TotalGross); c != 0 {
			return c > 0
		}
		return out[a].SupplierName < out[b].SupplierName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []SupplierRanking{}
	}
	return out
}
