package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/metrics"
	"token_distributor/internal/repository"
	"token_distributor/internal/utils"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const balanceCheckTimeout = 30 * time.Second

// BalanceMonitor periodically reports the signer's balances and warns when the
// token balance drops below the configured threshold.
type BalanceMonitor struct {
	repo      repository.EthereumRepository
	metrics   *metrics.Metrics
	schedule  string
	threshold decimal.Decimal
	cron      *cron.Cron
}

func NewBalanceMonitor(repo repository.EthereumRepository, config *config.Config, metrics *metrics.Metrics) *BalanceMonitor {
	return &BalanceMonitor{
		repo:      repo,
		metrics:   metrics,
		schedule:  config.CronSchedule,
		threshold: config.LowBalanceThreshold,
	}
}

func (m *BalanceMonitor) Start() error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), balanceCheckTimeout)
		defer cancel()
		if _, err := m.Check(ctx); err != nil {
			log.Printf("Error checking signer balance: %v", err)
		}
		utils.PrintNextExecution(c)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule balance monitor: %w", err)
	}

	m.cron = c
	c.Start()
	utils.PrintNextExecution(c)
	return nil
}

// Stop waits for a running check to finish.
func (m *BalanceMonitor) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// Check reads the signer's balances once. It reports whether the token balance is
// below the threshold.
func (m *BalanceMonitor) Check(ctx context.Context) (bool, error) {
	signer := m.repo.SignerAddress()

	tokenBalance, err := m.repo.GetBalance(ctx, signer)
	if err != nil {
		return false, fmt.Errorf("failed to fetch token balance: %w", err)
	}
	nativeBalance, err := m.repo.GetNativeBalance(ctx, signer)
	if err != nil {
		return false, fmt.Errorf("failed to fetch native balance: %w", err)
	}
	m.metrics.SetSignerBalance("token", tokenBalance)
	m.metrics.SetSignerBalance("native", nativeBalance)
	log.Printf("Signer %s balance: %s tokens, %s native", signer.Hex(), tokenBalance, nativeBalance)

	low := tokenBalance.LessThan(m.threshold)
	if low {
		log.Printf("⚠️ Signer token balance %s is below threshold %s", tokenBalance, m.threshold)
	}
	return low, nil
}
