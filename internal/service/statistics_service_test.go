package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	"taxaudit/internal/service"
)

func TestStatisticsService_GetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDefaults(t)

	client := f.partner(t, "Padaria Central", model.PartnerTypeClient, "11.111.111/0001-11", "")
	alfa := f.partner(t, "Consultoria Alfa", model.PartnerTypeSupplier, "22.222.222/0001-22", "lucro_real")
	beta := f.partner(t, "Beta Advogados", model.PartnerTypeSupplier, "33.333.333/0001-33", "lucro_real")

	for _, req := range []service.CreatePaymentRequest{
		withDate(consultingPayment(client, alfa, "NF-1"), "2024-01-10"),
		withDate(consultingPayment(client, alfa, "NF-2"), "2024-02-10"),
		withDate(consultingPayment(client, beta, "NF-3"), "2024-05-02"),
		withDate(consultingPayment(client, beta, "NF-4"), "2025-01-01"),
	} {
		_, err := f.payments.CreatePayment(ctx, req, "tester")
		require.NoError(t, err)
	}

	stats := service.NewStatisticsService(repository.NewStatisticsRepository(f.db))

	got, err := stats.GetStatistics(ctx, service.StatisticsFilter{
		ClientID: client.ID.String(), From: "2024-01-01", To: "2024-12-31", GroupBy: "quarter",
	})
	require.NoError(t, err)

	require.Len(t, got.Periods, 2)
	assert.Equal(t, "2024-Q1", got.Periods[0].Period)
	assert.Equal(t, 2, got.Periods[0].PaymentCount)
	assert.True(t, decimal.RequireFromString("20000").Equal(got.Periods[0].TotalGross))
	assert.True(t, decimal.RequireFromString("2230").Equal(got.Periods[0].TotalWithheld))
	assert.True(t, decimal.RequireFromString("300").Equal(got.Periods[0].Withheld.IR))
	assert.Equal(t, "2024-Q2", got.Periods[1].Period)

	require.Len(t, got.TopSuppliers, 2)
	assert.Equal(t, "Consultoria Alfa", got.TopSuppliers[0].SupplierName)
	assert.Equal(t, 2, got.TopSuppliers[0].PaymentCount)
	assert.Equal(t, "Beta Advogados", got.TopSuppliers[1].SupplierName)

	byMonth, err := stats.GetStatistics(ctx, service.StatisticsFilter{From: "2024-01-01", To: "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "month", byMonth.GroupBy)
	require.Len(t, byMonth.Periods, 4)
	assert.Equal(t, "2025-01", byMonth.Periods[3].Period)
}

func TestStatisticsService_RunSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDefaults(t)

	client := f.partner(t, "Padaria Central", model.PartnerTypeClient, "11.111.111/0001-11", "")
	supplier := f.partner(t, "Consultoria Alfa", model.PartnerTypeSupplier, "22.222.222/0001-22", "lucro_real")
	req := consultingPayment(client, supplier, "NF-1")
	req.WithheldIR = "0.00"
	req.NetAmount = "9035.00"
	_, err := f.payments.CreatePayment(ctx, req, "tester")
	require.NoError(t, err)

	_, err = f.audits.RunClientAudit(ctx, client.ID.String(), false, "tester")
	require.NoError(t, err)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	got, err := service.NewStatisticsService(repository.NewStatisticsRepository(f.db)).
		GetStatistics(ctx, service.StatisticsFilter{From: "2000-01-01", To: tomorrow})
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Runs.Runs)
	assert.EqualValues(t, 0, got.Runs.FailedRuns)
	assert.EqualValues(t, 1, got.Runs.NonCompliant)
}

func TestStatisticsService_Validation(t *testing.T) {
	f := newFixture(t)
	stats := service.NewStatisticsService(repository.NewStatisticsRepository(f.db))

	for _, filter := range []service.StatisticsFilter{
		{GroupBy: "day"},
		{ClientID: "nope"},
		{From: "01/02/2024"},
		{From: "2024-02-01", To: "2024-01-01"},
	} {
		_, err := stats.GetStatistics(context.Background(), filter)
		assert.ErrorIs(t, err, service.ErrValidation, "%+v", filter)
	}

	got, err := stats.GetStatistics(context.Background(), service.StatisticsFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got.Periods)
	assert.NotNil(t, got.TopSuppliers)
}

func withDate(req service.CreatePaymentRequest, date string) service.CreatePaymentRequest {
	req.PaymentDate = date
	return req
}
