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

const stockColumns = `
	bs.id::text, bs.habit_business_id::text, bs.business_owner_id::text,
	hb.business_name, hb.business_icon, hb.streak,
	bs.current_price_micros, bs.total_shares_issued, bs.shares_owned_by_owner,
	bs.shares_available, bs.price_multiplier::float8, bs.last_price_update, bs.is_active`

func collectStocks(rows pgx.Rows) ([]BusinessStock, error) {
	defer rows.Close()
	var out []BusinessStock
	for rows.Next() {
		var st BusinessStock
		if err := rows.Scan(
			&st.ID, &st.HabitBusinessID, &st.OwnerID,
			&st.BusinessName, &st.BusinessIcon, &st.Streak,
			&st.CurrentPriceMicros, &st.TotalSharesIssued, &st.SharesOwnedByOwner,
			&st.SharesAvailable, &st.PriceMultiplier, &st.LastPriceUpdate, &st.IsActive,
		); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListStocks returns other players' active stocks that still have shares for sale.
func (s *Service) ListStocks(ctx context.Context, userID string) ([]BusinessStock, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+stockColumns+`
		FROM tycoon.business_stocks bs
		JOIN tycoon.habit_businesses hb ON hb.id = bs.habit_business_id
		WHERE bs.is_active AND bs.shares_available > 0 AND bs.business_owner_id <> $1
		ORDER BY hb.streak DESC, bs.current_price_micros DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectStocks(rows)
}

func (s *Service) OwnedStocks(ctx context.Context, userID string) ([]BusinessStock, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+stockColumns+`
		FROM tycoon.business_stocks bs
		JOIN tycoon.habit_businesses hb ON hb.id = bs.habit_business_id
		WHERE bs.is_active AND bs.business_owner_id = $1
		ORDER BY hb.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectStocks(rows)
}

func (s *Service) Holdings(ctx context.Context, userID string) ([]StockHolding, error) {
	rows, err := s.db.Query(ctx, `
		SELECT h.id::text, h.holder_id::text, h.stock_id::text, hb.business_name,
		       bs.current_price_micros, h.shares_owned, h.average_purchase_price_micros,
		       h.total_invested_micros, h.total_dividends_earned_micros
		FROM tycoon.stock_holdings h
		JOIN tycoon.business_stocks bs ON bs.id = h.stock_id
		JOIN tycoon.habit_businesses hb ON hb.id = bs.habit_business_id
		WHERE h.holder_id = $1 AND h.shares_owned > 0
		ORDER BY hb.business_name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockHolding
	for rows.Next() {
		var h StockHolding
		if err := rows.Scan(&h.ID, &h.HolderID, &h.StockID, &h.BusinessName,
			&h.CurrentPriceMicros, &h.SharesOwned, &h.AveragePurchasePriceMicros,
			&h.TotalInvestedMicros, &h.TotalDividendsEarnedMicros); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type tradableStock struct {
	id          string
	ownerID     string
	priceMicros int64
	available   int64
}

func lockStockTx(ctx context.Context, tx pgx.Tx, stockID string) (tradableStock, error) {
	var st tradableStock
	err := tx.QueryRow(ctx, `
		SELECT id::text, business_owner_id::text, current_price_micros, shares_available
		FROM tycoon.business_stocks
		WHERE id = $1 AND is_active
		FOR UPDATE
	`, stockID).Scan(&st.id, &st.ownerID, &st.priceMicros, &st.available)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, ErrStockNotFound
	}
	return st, err
}

// lockHoldingTx returns the caller's holding, or a zero holding when none exists.
func lockHoldingTx(ctx context.Context, tx pgx.Tx, holderID, stockID string) (StockHolding, bool, error) {
	h := StockHolding{HolderID: holderID, StockID: stockID}
	err := tx.QueryRow(ctx, `
		SELECT id::text, shares_owned, average_purchase_price_micros,
		       total_invested_micros, total_dividends_earned_micros
		FROM tycoon.stock_holdings
		WHERE holder_id = $1 AND stock_id = $2
		FOR UPDATE
	`, holderID, stockID).Scan(&h.ID, &h.SharesOwned, &h.AveragePurchasePriceMicros,
		&h.TotalInvestedMicros, &h.TotalDividendsEarnedMicros)
	if errors.Is(err, pgx.ErrNoRows) {
		return h, false, nil
	}
	return h, err == nil, err
}

func recordStockTransaction(ctx context.Context, tx pgx.Tx, stockID, buyerID, sellerID, kind string, shares, priceMicros, totalMicros, feeMicros int64) error {
	var buyer, seller any
	if buyerID != "" {
		buyer = buyerID
	}
	if sellerID != "" {
		seller = sellerID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO tycoon.stock_transactions
			(id, stock_id, buyer_id, seller_id, shares_traded, price_per_share_micros, total_micros, fee_micros, transaction_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.NewString(), stockID, buyer, seller, shares, priceMicros, totalMicros, feeMicros, kind)
	return err
}

func (s *Service) PurchaseStockShares(ctx context.Context, in TradeInput) (PurchaseResult, error) {
	var out PurchaseResult
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	if err := validateShareCount(in.Shares); err != nil {
		return out, err
	}
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "buy"); err != nil {
			return err
		}
		st, err := lockStockTx(ctx, tx, in.StockID)
		if err != nil {
			return err
		}
		if st.ownerID == in.UserID {
			return ErrSelfTrade
		}
		cash, _, err := lockCashTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		cost, err := QuotePurchase(st.priceMicros, in.Shares, st.available, cash)
		if err != nil {
			return err
		}

		holding, exists, err := lockHoldingTx(ctx, tx, in.UserID, st.id)
		if err != nil {
			return err
		}
		holding = ApplyPurchase(holding, in.Shares, st.priceMicros)
		if exists {
			_, err = tx.Exec(ctx, `
				UPDATE tycoon.stock_holdings
				SET shares_owned = $1, average_purchase_price_micros = $2, total_invested_micros = $3, updated_at = now()
				WHERE id = $4
			`, holding.SharesOwned, holding.AveragePurchasePriceMicros, holding.TotalInvestedMicros, holding.ID)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO tycoon.stock_holdings
					(id, holder_id, stock_id, shares_owned, average_purchase_price_micros, total_invested_micros)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.NewString(), in.UserID, st.id, holding.SharesOwned, holding.AveragePurchasePriceMicros, holding.TotalInvestedMicros)
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.business_stocks
			SET shares_available = shares_available - $1, updated_at = now()
			WHERE id = $2
		`, in.Shares, st.id); err != nil {
			return err
		}
		nextCash, err := creditTx(ctx, tx, in.UserID, -cost, 0)
		if err != nil {
			return err
		}
		if err := recordStockTransaction(ctx, tx, st.id, in.UserID, "", "purchase", in.Shares, st.priceMicros, cost, 0); err != nil {
			return err
		}
		out = PurchaseResult{Success: true, SharesPurchased: in.Shares, TotalCostMicros: cost, CashMicros: nextCash}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	s.publish(ctx, events.StockTraded, map[string]any{
		"side":         "buy",
		"user_id":      in.UserID,
		"stock_id":     in.StockID,
		"shares":       in.Shares,
		"total_micros": out.TotalCostMicros,
	})
	return out, nil
}

// SellStockShares returns shares to the float. Net worth moves by the realised
// gain or loss against the cost basis of the shares sold.
func (s *Service) SellStockShares(ctx context.Context, in TradeInput) (SaleResult, error) {
	var out SaleResult
	if in.UserID == "" {
		return out, ErrNotAuthenticated
	}
	if err := validateShareCount(in.Shares); err != nil {
		return out, err
	}
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.UserID, in.IdempotencyKey, "sell"); err != nil {
			return err
		}
		st, err := lockStockTx(ctx, tx, in.StockID)
		if err != nil {
			return err
		}
		holding, exists, err := lockHoldingTx(ctx, tx, in.UserID, st.id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: no position in this stock", ErrInsufficientShares)
		}
		quote, err := QuoteSale(st.priceMicros, in.Shares, holding.SharesOwned)
		if err != nil {
			return err
		}
		next := ApplySale(holding, in.Shares)
		costBasis := holding.TotalInvestedMicros - next.TotalInvestedMicros

		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.stock_holdings
			SET shares_owned = $1, total_invested_micros = $2, updated_at = now()
			WHERE id = $3
		`, next.SharesOwned, next.TotalInvestedMicros, holding.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE tycoon.business_stocks
			SET shares_available = shares_available + $1, updated_at = now()
			WHERE id = $2
		`, in.Shares, st.id); err != nil {
			return err
		}
		cash, err := creditTx(ctx, tx, in.UserID, quote.NetMicros, quote.NetMicros-costBasis)
		if err != nil {
			return err
		}
		if err := recordStockTransaction(ctx, tx, st.id, "", in.UserID, "sale", in.Shares, st.priceMicros, quote.GrossMicros, quote.FeeMicros); err != nil {
			return err
		}
		out = SaleResult{
			Success:           true,
			SharesSold:        in.Shares,
			GrossMicros:       quote.GrossMicros,
			FeeMicros:         quote.FeeMicros,
			NetProceedsMicros: quote.NetMicros,
			CashMicros:        cash,
		}
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}
	s.publish(ctx, events.StockTraded, map[string]any{
		"side":         "sell",
		"user_id":      in.UserID,
		"stock_id":     in.StockID,
		"shares":       in.Shares,
		"total_micros": out.NetProceedsMicros,
	})
	return out, nil
}

// RecomputeStockPrice reprices a business stock from its streak with the
// stored procedure, falling back to the same formula in Go.
func (s *Service) RecomputeStockPrice(ctx context.Context, habitID string) (int64, error) {
	var price int64
	err := s.db.QueryRow(ctx, `SELECT tycoon.update_stock_price_by_streak($1)`, habitID).Scan(&price)
	if err == nil {
		return price, nil
	}
	s.log.Warn("stock price procedure failed, using fallback", "habit_id", habitID, "err", err)

	var streak int
	var baseCost int64
	if err := s.db.QueryRow(ctx, `
		SELECT hb.streak, bt.base_cost_micros
		FROM tycoon.habit_businesses hb
		JOIN tycoon.business_types bt ON bt.id = hb.business_type_id
		WHERE hb.id = $1
	`, habitID).Scan(&streak, &baseCost); err != nil {
		return 0, err
	}
	multiplier := PriceMultiplierForStreak(streak)
	price = FallbackPrice(baseCost, multiplier)
	if _, err := s.db.Exec(ctx, `
		UPDATE tycoon.business_stocks
		SET price_multiplier = $1::numeric, current_price_micros = $2, last_price_update = now(), updated_at = now()
		WHERE habit_business_id = $3
	`, multiplier.String(), price, habitID); err != nil {
		return 0, err
	}
	return price, nil
}

func createStockTx(ctx context.Context, tx pgx.Tx, habitID, ownerID string, baseCostMicros int64) error {
	multiplier := decimal.NewFromInt(1)
	_, err := tx.Exec(ctx, `
		INSERT INTO tycoon.business_stocks
			(id, habit_business_id, business_owner_id, current_price_micros, total_shares_issued,
			 shares_owned_by_owner, shares_available, price_multiplier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric)
	`, uuid.NewString(), habitID, ownerID, FallbackPrice(baseCostMicros, multiplier),
		DefaultTotalShares, DefaultOwnerShares, DefaultSharesForSale, multiplier.String())
	return err
}

// liquidateStockTx closes a business stock and pays every external holder
// their shares at the current price.
func liquidateStockTx(ctx context.Context, tx pgx.Tx, habitID string) (int, int64, error) {
	var stockID string
	var price int64
	err := tx.QueryRow(ctx, `
		SELECT id::text, current_price_micros
		FROM tycoon.business_stocks
		WHERE habit_business_id = $1 AND is_active
		FOR UPDATE
	`, habitID).Scan(&stockID, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	rows, err := tx.Query(ctx, `
		SELECT holder_id::text, shares_owned, total_invested_micros
		FROM tycoon.stock_holdings
		WHERE stock_id = $1 AND shares_owned > 0
		ORDER BY holder_id
		FOR UPDATE
	`, stockID)
	if err != nil {
		return 0, 0, err
	}
	type position struct {
		holderID string
		shares   int64
		invested int64
	}
	var positions []position
	for rows.Next() {
		var p position
		if err := rows.Scan(&p.holderID, &p.shares, &p.invested); err != nil {
			rows.Close()
			return 0, 0, err
		}
		positions = append(positions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	var refunded int64
	for _, p := range positions {
		payout := LiquidationPayout(p.shares, price)
		if _, err := creditTx(ctx, tx, p.holderID, payout, payout-p.invested); err != nil {
			return 0, 0, err
		}
		if err := recordStockTransaction(ctx, tx, stockID, "", p.holderID, "liquidation", p.shares, price, payout, 0); err != nil {
			return 0, 0, err
		}
		refunded += payout
	}
	if _, err := tx.Exec(ctx, `
		UPDATE tycoon.stock_holdings
		SET shares_owned = 0, total_invested_micros = 0, updated_at = now()
		WHERE stock_id = $1
	`, stockID); err != nil {
		return 0, 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE tycoon.business_stocks
		SET is_active = false, shares_available = 0, updated_at = now()
		WHERE id = $1
	`, stockID); err != nil {
		return 0, 0, err
	}
	return len(positions), refunded, nil
}
