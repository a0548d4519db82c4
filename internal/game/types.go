package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

type Profile struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Timezone       string `json:"timezone"`
	CashMicros     int64  `json:"cash_micros"`
	NetWorthMicros int64  `json:"net_worth_micros"`
}

type BusinessType struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Icon           string `json:"icon"`
	Description    string `json:"description"`
	BaseCostMicros int64  `json:"base_cost_micros"`
	BasePayMicros  int64  `json:"base_pay_micros"`
}

type HabitBusiness struct {
	ID                          string     `json:"id"`
	UserID                      string     `json:"user_id"`
	BusinessTypeID              int64      `json:"business_type_id"`
	BusinessName                string     `json:"business_name"`
	BusinessIcon                string     `json:"business_icon"`
	HabitDescription            string     `json:"habit_description"`
	Frequency                   Frequency  `json:"frequency"`
	GoalValue                   int        `json:"goal_value"`
	CostMicros                  int64      `json:"cost_micros"`
	EarningsPerCompletionMicros int64      `json:"earnings_per_completion_micros"`
	CurrentProgress             int        `json:"current_progress"`
	Streak                      int        `json:"streak"`
	TotalCompletions            int64      `json:"total_completions"`
	TotalEarningsMicros         int64      `json:"total_earnings_micros"`
	LastCompletedAt             *time.Time `json:"last_completed_at,omitempty"`
	IsActive                    bool       `json:"is_active"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

type CompletionRecord struct {
	ID              string    `json:"id"`
	HabitBusinessID string    `json:"habit_business_id"`
	UserID          string    `json:"user_id"`
	EarningsMicros  int64     `json:"earnings_micros"`
	StreakCount     int       `json:"streak_count"`
	CompletedAt     time.Time `json:"completed_at"`
	LocalDate       string    `json:"local_date"`
	Slot            int       `json:"slot"`
	GoalCompleting  bool      `json:"goal_completing"`
}

type BusinessStock struct {
	ID                 string    `json:"id"`
	HabitBusinessID    string    `json:"habit_business_id"`
	OwnerID            string    `json:"business_owner_id"`
	BusinessName       string    `json:"business_name,omitempty"`
	BusinessIcon       string    `json:"business_icon,omitempty"`
	Streak             int       `json:"streak"`
	CurrentPriceMicros int64     `json:"current_price_micros"`
	TotalSharesIssued  int64     `json:"total_shares_issued"`
	SharesOwnedByOwner int64     `json:"shares_owned_by_owner"`
	SharesAvailable    int64     `json:"shares_available"`
	PriceMultiplier    float64   `json:"price_multiplier"`
	LastPriceUpdate    time.Time `json:"last_price_update"`
	IsActive           bool      `json:"is_active"`
}

type StockHolding struct {
	ID                         string `json:"id"`
	HolderID                   string `json:"holder_id"`
	StockID                    string `json:"stock_id"`
	BusinessName               string `json:"business_name,omitempty"`
	CurrentPriceMicros         int64  `json:"current_price_micros"`
	SharesOwned                int64  `json:"shares_owned"`
	AveragePurchasePriceMicros int64  `json:"average_purchase_price_micros"`
	TotalInvestedMicros        int64  `json:"total_invested_micros"`
	TotalDividendsEarnedMicros int64  `json:"total_dividends_earned_micros"`
}

type DividendDistribution struct {
	ID                  string          `json:"id"`
	DividendPaymentID   string          `json:"dividend_payment_id"`
	StockholderID       string          `json:"stockholder_id"`
	StockID             string          `json:"stock_id"`
	SharesOwned         int64           `json:"shares_owned"`
	DividendPerShare    decimal.Decimal `json:"dividend_per_share"`
	TotalDividendMicros int64           `json:"total_dividend_micros"`
	CreatedAt           time.Time       `json:"created_at"`
}

type HistoryDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	StreakDay int    `json:"streakDay"`
}

type CompleteResult struct {
	Completion         CompletionRecord `json:"completion"`
	CurrentProgress    int              `json:"current_progress"`
	GoalValue          int              `json:"goal_value"`
	GoalCompleted      bool             `json:"goal_completed"`
	Streak             int              `json:"streak"`
	Earnings           Earnings         `json:"earnings"`
	DividendPaymentID  string           `json:"dividend_payment_id,omitempty"`
	DividendPoolMicros int64            `json:"dividend_pool_micros"`
	CashMicros         int64            `json:"cash_micros"`
}

type UndoResult struct {
	RemovedCompletionID string `json:"removed_completion_id"`
	CurrentProgress     int    `json:"current_progress"`
	Streak              int    `json:"streak"`
	RefundedMicros      int64  `json:"refunded_micros"`
	CashMicros          int64  `json:"cash_micros"`
}

type PurchaseResult struct {
	Success         bool  `json:"success"`
	SharesPurchased int64 `json:"shares_purchased"`
	TotalCostMicros int64 `json:"total_cost_micros"`
	CashMicros      int64 `json:"cash_micros"`
}

type SaleResult struct {
	Success           bool  `json:"success"`
	SharesSold        int64 `json:"shares_sold"`
	GrossMicros       int64 `json:"gross_micros"`
	FeeMicros         int64 `json:"fee_micros"`
	NetProceedsMicros int64 `json:"net_proceeds_micros"`
	CashMicros        int64 `json:"cash_micros"`
}

type SellBusinessResult struct {
	Success         bool  `json:"success"`
	SellValueMicros int64 `json:"sell_value_micros"`
	HoldersRefunded int   `json:"holders_refunded"`
	RefundedMicros  int64 `json:"refunded_micros"`
	CashMicros      int64 `json:"cash_micros"`
}

type UpgradeOption struct {
	BusinessType      BusinessType `json:"business_type"`
	UpgradeCostMicros int64        `json:"upgrade_cost_micros"`
	ProfitMicros      int64        `json:"profit_from_upgrade_micros"`
	CanAfford         bool         `json:"can_afford"`
}

type UpgradeCalculation struct {
	CurrentBusinessValueMicros int64           `json:"current_business_value_micros"`
	StreakMultiplier           int             `json:"streak_multiplier"`
	TotalStreakValueMicros     int64           `json:"total_streak_value_micros"`
	AvailableUpgrades          []BusinessType  `json:"available_upgrades"`
	UpgradeOptions             []UpgradeOption `json:"upgrade_options"`
}

type UpgradeResult struct {
	NewBusiness  HabitBusiness `json:"new_business"`
	ProfitMicros int64         `json:"profit_from_upgrade_micros"`
	CashMicros   int64         `json:"cash_micros"`
}

type Dashboard struct {
	Profile               Profile         `json:"profile"`
	Businesses            []HabitBusiness `json:"businesses"`
	Holdings              []StockHolding  `json:"holdings"`
	TodaysEarningsMicros  int64           `json:"todays_earnings_micros"`
	TodaysDividendsMicros int64           `json:"todays_dividends_micros"`
	ResetHabitIDs         []string        `json:"reset_habit_ids,omitempty"`
}

type DividendDebugInfo struct {
	UserHoldings                []StockHolding         `json:"user_holdings"`
	OwnedBusinessStocks         []BusinessStock        `json:"owned_business_stocks"`
	TodaysDividendsMicros       int64                  `json:"todays_dividends_micros"`
	RecentDividendDistributions []DividendDistribution `json:"recent_dividend_distributions"`
	PendingPayments             int64                  `json:"pending_payments"`
}

type CompleteHabitInput struct {
	UserID         string
	HabitID        string
	ClientTime     *time.Time
	IdempotencyKey string
}

type UndoHabitInput struct {
	UserID         string
	HabitID        string
	IdempotencyKey string
}

type CreateHabitInput struct {
	UserID           string
	BusinessTypeID   int64
	BusinessName     string
	HabitDescription string
	Frequency        string
	GoalValue        int
	IdempotencyKey   string
}

type UpdateHabitInput struct {
	UserID           string
	HabitID          string
	BusinessName     *string
	HabitDescription *string
	Frequency        *string
	GoalValue        *int
}

type TradeInput struct {
	UserID         string
	StockID        string
	Shares         int64
	IdempotencyKey string
}

type UpgradeInput struct {
	UserID            string
	HabitID           string
	NewBusinessTypeID int64
	NewBusinessName   string
	NewDescription    string
	IdempotencyKey    string
}

// TodayHabit is one row of the daily checklist.
type TodayHabit struct {
	HabitBusiness
	EffectiveProgress int  `json:"effective_progress"`
	CompletedToday    int  `json:"completed_today"`
	GoalMet           bool `json:"goal_met"`
}
