package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"
	"escrow-market/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	idempotencyScopeTopUp    = "wallet_topup"
	idempotencyScopeWithdraw = "wallet_withdraw"

	CallbackStatusSuccess = "success"
	CallbackStatusFailed  = "failed"
)

// WalletService handles the wallet ledger: mobile-money deposits and
// withdrawals, and their settlement by provider callbacks
type WalletService struct {
	repo     *repository.Repository
	fees     FeeSchedule
	activity activityRecorder
	log      *zap.Logger
	now      func() time.Time
}

func NewWalletService(repo *repository.Repository, fees FeeSchedule, activity repository.ActivityLog, log *zap.Logger) *WalletService {
	log = log.Named("wallet")
	return &WalletService{
		repo:     repo,
		fees:     fees,
		activity: activityRecorder{sink: activity, log: log},
		log:      log,
		now:      time.Now,
	}
}

// Summary returns the balance and the money currently in flight
func (s *WalletService) Summary(ctx context.Context, userID uint) (*models.WalletSummary, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	held, err := s.repo.SumEscrowHeld(ctx, userID)
	if err != nil {
		return nil, err
	}
	deposits, err := s.repo.SumTransactions(ctx, userID, models.TransactionTypeDeposit, models.TransactionStatusPending)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.SumTransactions(ctx, userID, models.TransactionTypeWithdrawal, models.TransactionStatusPending)
	if err != nil {
		return nil, err
	}
	return &models.WalletSummary{
		Balance:          user.WalletBalance,
		HeldInEscrow:     held,
		PendingDeposits:  deposits,
		PendingWithdraws: withdrawals,
	}, nil
}

// Transactions lists the user's ledger entries, newest first
func (s *WalletService) Transactions(ctx context.Context, userID uint, typ string, limit, offset int) ([]models.Transaction, int64, error) {
	t := models.TransactionType(typ)
	if typ != "" && !t.Valid() {
		return nil, 0, invalidInput("unknown transaction type %q", typ)
	}
	return s.repo.ListTransactions(ctx, repository.TransactionFilter{
		UserID: userID,
		Type:   t,
		Limit:  limit,
		Offset: offset,
	})
}

// TopUp records a pending deposit. The wallet is credited only when the
// provider confirms the payment through HandleProviderCallback.
func (s *WalletService) TopUp(ctx context.Context, userID uint, req models.TopUpRequest, idempotencyKey string) (*models.Transaction, error) {
	if err := s.validateTransfer(req.Amount, req.Method, req.PhoneNumber); err != nil {
		return nil, err
	}

	return s.withIdempotency(ctx, userID, idempotencyKey, idempotencyScopeTopUp, func(tx *repository.Repository) (*models.Transaction, error) {
		reference, err := utils.GenerateTransactionReference(string(req.Method))
		if err != nil {
			return nil, err
		}
		txn := &models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeDeposit,
			Amount:      req.Amount,
			Fee:         decimal.Zero,
			Method:      req.Method,
			PhoneNumber: strings.TrimSpace(req.PhoneNumber),
			Reference:   reference,
			Status:      models.TransactionStatusPending,
			Description: fmt.Sprintf("Top up via %s", req.Method),
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return nil, err
		}
		return txn, nil
	})
}

// Withdraw debits amount plus fee immediately and records a pending
// withdrawal. Only verified members may withdraw. A balance below amount+fee
// is rejected without any write.
func (s *WalletService) Withdraw(ctx context.Context, userID uint, req models.WithdrawRequest, idempotencyKey string) (*models.Transaction, error) {
	if err := s.validateTransfer(req.Amount, req.Method, req.PhoneNumber); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !user.Verified {
		return nil, ErrNotVerified
	}
	fee := s.fees.WithdrawalFee(req.Amount)
	deduction := req.Amount.Add(fee)

	return s.withIdempotency(ctx, userID, idempotencyKey, idempotencyScopeWithdraw, func(tx *repository.Repository) (*models.Transaction, error) {
		if err := tx.DebitWallet(ctx, userID, deduction); err != nil {
			return nil, mapRepoError(err)
		}
		reference, err := utils.GenerateTransactionReference(string(req.Method))
		if err != nil {
			return nil, err
		}
		txn := &models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      req.Amount,
			Fee:         fee,
			Method:      req.Method,
			PhoneNumber: strings.TrimSpace(req.PhoneNumber),
			Reference:   reference,
			Status:      models.TransactionStatusPending,
			Description: fmt.Sprintf("Withdrawal to %s", req.Method),
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return nil, err
		}
		return txn, nil
	})
}

// CallbackResult reports what a provider callback did
type CallbackResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Applied     bool                `json:"applied"`
}

// HandleProviderCallback settles a pending deposit or withdrawal. Callbacks
// for entries that are already settled change nothing, so providers may
// retry freely.
func (s *WalletService) HandleProviderCallback(ctx context.Context, cb models.ProviderCallback) (*CallbackResult, error) {
	success := cb.Status == CallbackStatusSuccess
	if !success && cb.Status != CallbackStatusFailed {
		return nil, invalidInput("status must be success or failed")
	}

	var (
		txn     *models.Transaction
		applied bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		txn, err = tx.GetTransactionByReferenceForUpdate(ctx, cb.Reference)
		if err != nil {
			return mapRepoError(err)
		}
		if txn.Status != models.TransactionStatusPending {
			return nil
		}
		if txn.Type != models.TransactionTypeDeposit && txn.Type != models.TransactionTypeWithdrawal {
			return invalidInput("transaction %s is not settled by a provider", cb.Reference)
		}

		final := models.TransactionStatusFailed
		if success {
			final = models.TransactionStatusCompleted
		}
		now := s.now().UTC()
		if err := tx.SettleTransaction(ctx, txn.ID, final, now); err != nil {
			return mapRepoError(err)
		}

		switch {
		case txn.Type == models.TransactionTypeDeposit && success:
			if err := tx.CreditWallet(ctx, txn.UserID, txn.Amount); err != nil {
				return mapRepoError(err)
			}
		case txn.Type == models.TransactionTypeWithdrawal && !success:
			if err := tx.CreditWallet(ctx, txn.UserID, txn.Amount.Add(txn.Fee)); err != nil {
				return mapRepoError(err)
			}
		}

		txn.Status = final
		txn.CompletedAt = &now
		applied = true

		return notify(ctx, tx, txn.UserID, nil, models.NotificationWalletUpdate,
			fmt.Sprintf("Your %s was %s", txn.Type, final),
			fmt.Sprintf("%s %s via %s (ref %s)", txn.Type, txn.Amount.StringFixed(2), txn.Method, txn.Reference))
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.log.Info("provider callback applied",
			zap.String("reference", txn.Reference),
			zap.String("type", string(txn.Type)),
			zap.String("status", string(txn.Status)))
		uid := txn.UserID
		s.activity.record(ctx, "transaction", txn.ID.String(),
			string(models.TransactionStatusPending), string(txn.Status), &uid, cb.ProviderReference)
	} else {
		s.log.Debug("provider callback ignored, already settled", zap.String("reference", cb.Reference))
	}
	return &CallbackResult{Transaction: txn, Applied: applied}, nil
}

func (s *WalletService) validateTransfer(amount decimal.Decimal, method models.PaymentMethod, phone string) error {
	if !validMoney(amount) {
		return invalidInput("amount must be positive with at most two decimals")
	}
	if amount.LessThan(s.fees.MinTransferAmount) {
		return invalidInput("minimum amount is %s", s.fees.MinTransferAmount.StringFixed(2))
	}
	if !method.IsMobileMoney() {
		return invalidInput("unsupported payment method %q", method)
	}
	if strings.TrimSpace(phone) == "" {
		return invalidInput("phone number is required")
	}
	return nil
}

// withIdempotency runs create in a transaction, unless key was already used
// for the same scope, in which case the transaction it produced is returned.
func (s *WalletService) withIdempotency(ctx context.Context, userID uint, key, scope string,
	create func(tx *repository.Repository) (*models.Transaction, error)) (*models.Transaction, error) {

	var txn *models.Transaction
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if key != "" {
			k, err := tx.FindIdempotencyKey(ctx, userID, key)
			switch {
			case err == nil:
				if k.Scope != scope || k.TransactionID == nil {
					return ErrIdempotencyReuse
				}
				txn, err = tx.GetTransaction(ctx, *k.TransactionID)
				return mapRepoError(err)
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}

		var err error
		txn, err = create(tx)
		if err != nil {
			return err
		}
		if key == "" {
			return nil
		}
		return tx.SaveIdempotencyKey(ctx, &models.IdempotencyKey{
			UserID:        userID,
			Key:           key,
			Scope:         scope,
			TransactionID: &txn.ID,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) && key != "" {
			return nil, ErrIdempotencyReuse
		}
		return nil, err
	}
	return txn, nil
}
