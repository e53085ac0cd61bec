package ai

import (
	"fmt"
	"sync"
	"time"
)

// BudgetGate controls LLM spending with hard caps.
type BudgetGate struct {
	mu                sync.RWMutex
	MonthlyLimitUSD   float64
	CurrentMonthSpend float64
	LastResetMonth    time.Month
}

// UsageStats tracks LLM usage for billing across a service's lifetime.
type UsageStats struct {
	TotalRequests   int     `json:"total_requests"`
	TotalTokens     int     `json:"total_tokens"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	BudgetRemaining float64 `json:"budget_remaining_usd"`
}

// NewBudgetGate creates a budget gate with the given monthly limit.
func NewBudgetGate(monthlyLimitUSD float64) *BudgetGate {
	return &BudgetGate{
		MonthlyLimitUSD: monthlyLimitUSD,
		LastResetMonth:  time.Now().Month(),
	}
}

// CanSpend checks if the estimated cost fits the remaining budget.
func (bg *BudgetGate) CanSpend(estimatedCost float64) bool {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	// Reset monthly spend on month change
	currentMonth := time.Now().Month()
	if currentMonth != bg.LastResetMonth {
		bg.CurrentMonthSpend = 0
		bg.LastResetMonth = currentMonth
	}

	return bg.CurrentMonthSpend+estimatedCost <= bg.MonthlyLimitUSD
}

// RecordSpend records actual spending.
func (bg *BudgetGate) RecordSpend(cost float64) {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.CurrentMonthSpend += cost
}

// Remaining returns the budget left this month.
func (bg *BudgetGate) Remaining() float64 {
	bg.mu.RLock()
	defer bg.mu.RUnlock()
	return bg.MonthlyLimitUSD - bg.CurrentMonthSpend
}

// GetStatus returns a human-readable budget status.
func (bg *BudgetGate) GetStatus() string {
	bg.mu.RLock()
	defer bg.mu.RUnlock()
	return fmt.Sprintf("$%.2f / $%.2f used this month", bg.CurrentMonthSpend, bg.MonthlyLimitUSD)
}
