package services

import (
	"escrow-market/internal/config"

	"github.com/shopspring/decimal"
)

// FeeSchedule prices deals and withdrawals. Amounts are rounded to cents.
type FeeSchedule struct {
	PlatformRate      decimal.Decimal
	WithdrawalRate    decimal.Decimal
	WithdrawalMinFee  decimal.Decimal
	MinTransferAmount decimal.Decimal
}

// DefaultFeeSchedule charges 2% per deal and max(50, 1%) per withdrawal.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		PlatformRate:      decimal.RequireFromString("0.02"),
		WithdrawalRate:    decimal.RequireFromString("0.01"),
		WithdrawalMinFee:  decimal.NewFromInt(50),
		MinTransferAmount: decimal.NewFromInt(100),
	}
}

// FeeScheduleFromConfig builds the schedule from loaded configuration
func FeeScheduleFromConfig(c config.FeeConfig) FeeSchedule {
	return FeeSchedule{
		PlatformRate:      c.PlatformRate,
		WithdrawalRate:    c.WithdrawalRate,
		WithdrawalMinFee:  c.WithdrawalMinFee,
		MinTransferAmount: c.MinTransferAmount,
	}
}

// DealCharges returns the platform fee and the total the buyer pays.
func (f FeeSchedule) DealCharges(amount decimal.Decimal) (fee, total decimal.Decimal) {
	fee = amount.Mul(f.PlatformRate).Round(2)
	return fee, amount.Add(fee)
}

// WithdrawalFee returns max(minimum fee, amount * rate).
func (f FeeSchedule) WithdrawalFee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(f.WithdrawalRate).Round(2)
	if fee.LessThan(f.WithdrawalMinFee) {
		return f.WithdrawalMinFee
	}
	return fee
}

// validMoney reports whether amount is positive with at most two decimals.
func validMoney(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
