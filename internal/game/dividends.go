package game

import (
	"context"
	"errors"
	"fmt"

	"habittycoon/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const recentDistributionLimit = 10

func persistDividendPlan(ctx context.Context, tx pgx.Tx, paymentID, completionID, ownerID string, plan DividendPlan) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO tycoon.dividend_payments
			(id, completion_id, stock_id, owner_id, pool_micros, dividend_per_share, shares_outstanding, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, 'pending')
	`, paymentID, completionID, plan.StockID, ownerID, plan.PoolMicros, plan.PerShare.String(), plan.SharesOutstanding); err != nil {
		return err
	}
	for _, line := range plan.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tycoon.dividend_payment_lines (payment_id, holder_id, shares_owned, amount_micros)
			VALUES ($1, $2, $3, $4)
		`, paymentID, line.HolderID, line.SharesOwned, line.AmountMicros); err != nil {
			return err
		}
	}
	return nil
}

// SettleDividendPayment credits the stored lines of a payment. Each holder is
// paid at most once per payment, so calling it again after a partial failure
// only pays the holders that were missed.
func (s *Service) SettleDividendPayment(ctx context.Context, paymentID string) (int64, error) {
	var credited int64
	var paid int
	var stockID string
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		credited, paid = 0, 0
		var status, perShareText string
		err := tx.QueryRow(ctx, `
			SELECT stock_id::text, dividend_per_share::text, status
			FROM tycoon.dividend_payments
			WHERE id = $1
			FOR UPDATE
		`, paymentID).Scan(&stockID, &perShareText, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("dividend payment %s not found", paymentID)
		}
		if err != nil {
			return err
		}
		if status == "settled" {
			return nil
		}
		perShare, err := decimal.NewFromString(perShareText)
		if err != nil {
			return fmt.Errorf("parse dividend per share: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT holder_id::text, shares_owned, amount_micros
			FROM tycoon.dividend_payment_lines
			WHERE payment_id = $1
			ORDER BY holder_id
		`, paymentID)
		if err != nil {
			return err
		}
		lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[DividendLine])
		if err != nil {
			return err
		}

		for _, line := range lines {
			if line.AmountMicros <= 0 {
				continue
			}
			cmd, err := tx.Exec(ctx, `
				INSERT INTO tycoon.dividend_distributions
					(id, dividend_payment_id, stockholder_id, stock_id, shares_owned, dividend_per_share, total_dividend_micros)
				VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
				ON CONFLICT (dividend_payment_id, stockholder_id) DO NOTHING
			`, uuid.NewString(), paymentID, line.HolderID, stockID, line.SharesOwned, perShare.String(), line.AmountMicros)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				continue
			}
			if _, err := creditTx(ctx, tx, line.HolderID, line.AmountMicros, line.AmountMicros); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE tycoon.stock_holdings
				SET total_dividends_earned_micros = total_dividends_earned_micros + $1, updated_at = now()
				WHERE holder_id = $2 AND stock_id = $3
			`, line.AmountMicros, line.HolderID, stockID); err != nil {
				return err
			}
			credited += line.AmountMicros
			paid++
		}

		_, err = tx.Exec(ctx, `
			UPDATE tycoon.dividend_payments
			SET status = 'settled', settled_at = now(), attempts = attempts + 1
			WHERE id = $1
		`, paymentID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		s.publish(ctx, events.DividendPaid, map[string]any{
			"payment_id":      paymentID,
			"stock_id":        stockID,
			"holders":         paid,
			"credited_micros": credited,
		})
	}
	return credited, nil
}

// SettlePendingDividends retries payments left pending by a failed settle,
// oldest first. It returns how many were settled.
func (s *Service) SettlePendingDividends(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text
		FROM tycoon.dividend_payments
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, id := range ids {
		if _, err := s.SettleDividendPayment(ctx, id); err != nil {
			s.log.Error("pending dividend settlement failed", "payment_id", id, "err", err)
			if _, bumpErr := s.db.Exec(ctx, `
				UPDATE tycoon.dividend_payments SET attempts = attempts + 1 WHERE id = $1
			`, id); bumpErr != nil {
				s.log.Warn("could not record settlement attempt", "payment_id", id, "err", bumpErr)
			}
			continue
		}
		settled++
	}
	return settled, nil
}

// TodaysStockDividends sums dividends received during the user's local day.
func (s *Service) TodaysStockDividends(ctx context.Context, userID string) (int64, error) {
	loc, err := s.userLocation(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	from, to := localDayBounds(s.clock.Now(), loc)
	var total int64
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_dividend_micros), 0)
		FROM tycoon.dividend_distributions
		WHERE stockholder_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, from, to).Scan(&total)
	return total, err
}

func (s *Service) DividendDebugInfo(ctx context.Context, userID string) (DividendDebugInfo, error) {
	var out DividendDebugInfo
	var err error
	if out.UserHoldings, err = s.Holdings(ctx, userID); err != nil {
		return out, err
	}
	if out.OwnedBusinessStocks, err = s.OwnedStocks(ctx, userID); err != nil {
		return out, err
	}
	if out.TodaysDividendsMicros, err = s.TodaysStockDividends(ctx, userID); err != nil {
		return out, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id::text, dividend_payment_id::text, stockholder_id::text, stock_id::text,
		       shares_owned, dividend_per_share::text, total_dividend_micros, created_at
		FROM tycoon.dividend_distributions
		WHERE stockholder_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, recentDistributionLimit)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DividendDistribution
		var perShare string
		if err := rows.Scan(&d.ID, &d.DividendPaymentID, &d.StockholderID, &d.StockID,
			&d.SharesOwned, &perShare, &d.TotalDividendMicros, &d.CreatedAt); err != nil {
			return out, err
		}
		if d.DividendPerShare, err = decimal.NewFromString(perShare); err != nil {
			return out, err
		}
		out.RecentDividendDistributions = append(out.RecentDividendDistributions, d)
	}
	if err := rows.Err(); err != nil {
		return out, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM tycoon.dividend_payments p
		JOIN tycoon.business_stocks bs ON bs.id = p.stock_id
		WHERE p.status = 'pending' AND bs.business_owner_id = $1
	`, userID).Scan(&out.PendingPayments)
	return out, err
}
