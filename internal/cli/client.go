package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"habittycoon/internal/auth"
	"habittycoon/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx answer from the server. Anything else returned by
// the client is a transport failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsOffline reports whether err means the request never got an answer.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password, username, timezone string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"username": username,
		"timezone": timezone,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password, timezone string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
		"timezone": timezone,
	}, &out, "")
	return out, err
}

func (c *Client) Dashboard(ctx context.Context, accessToken string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/dashboard", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SetTimezone(ctx context.Context, accessToken, timezone string) error {
	return c.jsonRequest(ctx, http.MethodPatch, "/v1/profile", accessToken, map[string]any{
		"timezone": timezone,
	}, nil, "")
}

func (c *Client) BusinessTypes(ctx context.Context, accessToken string) ([]game.BusinessType, error) {
	var out struct {
		BusinessTypes []game.BusinessType `json:"business_types"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/business-types", accessToken, nil, &out, "")
	return out.BusinessTypes, err
}

func (c *Client) Habits(ctx context.Context, accessToken string) ([]game.HabitBusiness, error) {
	var out struct {
		Habits []game.HabitBusiness `json:"habits"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/habits", accessToken, nil, &out, "")
	return out.Habits, err
}

func (c *Client) TodaysHabits(ctx context.Context, accessToken string) ([]game.TodayHabit, error) {
	var out struct {
		Habits []game.TodayHabit `json:"habits"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/habits/today", accessToken, nil, &out, "")
	return out.Habits, err
}

type CreateHabitRequest struct {
	BusinessTypeID   int64  `json:"business_type_id"`
	BusinessName     string `json:"business_name"`
	HabitDescription string `json:"habit_description"`
	Frequency        string `json:"frequency"`
	GoalValue        int    `json:"goal_value"`
}

func (c *Client) CreateHabit(ctx context.Context, accessToken string, in CreateHabitRequest, idem string) (game.HabitBusiness, error) {
	var out game.HabitBusiness
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/habits", accessToken, in, &out, idem)
	return out, err
}

func (c *Client) UpdateHabit(ctx context.Context, accessToken, habitID string, fields map[string]any) (game.HabitBusiness, error) {
	var out game.HabitBusiness
	err := c.jsonRequest(ctx, http.MethodPatch, habitPath(habitID, ""), accessToken, fields, &out, "")
	return out, err
}

func (c *Client) SellHabit(ctx context.Context, accessToken, habitID, idem string) (game.SellBusinessResult, error) {
	var out game.SellBusinessResult
	err := c.jsonRequest(ctx, http.MethodDelete, habitPath(habitID, ""), accessToken, nil, &out, idem)
	return out, err
}

// CompleteBody is the request body of a completion, shared with the offline queue.
func CompleteBody(clientTime time.Time) map[string]any {
	return map[string]any{"client_time": clientTime.Format(time.RFC3339)}
}

func (c *Client) CompleteHabit(ctx context.Context, accessToken, habitID string, clientTime time.Time, idem string) (game.CompleteResult, error) {
	var out game.CompleteResult
	err := c.jsonRequest(ctx, http.MethodPost, habitPath(habitID, "complete"), accessToken, CompleteBody(clientTime), &out, idem)
	return out, err
}

func (c *Client) UndoHabit(ctx context.Context, accessToken, habitID, idem string) (game.UndoResult, error) {
	var out game.UndoResult
	err := c.jsonRequest(ctx, http.MethodPost, habitPath(habitID, "undo"), accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) History(ctx context.Context, accessToken, habitID string, days int) ([]game.HistoryDay, error) {
	var out struct {
		Days []game.HistoryDay `json:"days"`
	}
	path := habitPath(habitID, "history") + "?days=" + strconv.Itoa(days)
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out, "")
	return out.Days, err
}

func (c *Client) UpgradeOptions(ctx context.Context, accessToken, habitID string) (game.UpgradeCalculation, error) {
	var out game.UpgradeCalculation
	err := c.jsonRequest(ctx, http.MethodGet, habitPath(habitID, "upgrades"), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Upgrade(ctx context.Context, accessToken, habitID string, newTypeID int64, newName, idem string) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, habitPath(habitID, "upgrade"), accessToken, map[string]any{
		"new_business_type_id": newTypeID,
		"new_business_name":    newName,
	}, &out, idem)
	return out, err
}

type CleanupResult struct {
	Deleted    int `json:"deleted"`
	Kept       int `json:"kept"`
	TodayCount int `json:"today_count"`
}

func (c *Client) CleanupDuplicates(ctx context.Context, accessToken, habitID string) (CleanupResult, error) {
	var out CleanupResult
	err := c.jsonRequest(ctx, http.MethodPost, habitPath(habitID, "cleanup"), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Stocks(ctx context.Context, accessToken string) ([]game.BusinessStock, error) {
	var out struct {
		Stocks []game.BusinessStock `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", accessToken, nil, &out, "")
	return out.Stocks, err
}

func (c *Client) BuyShares(ctx context.Context, accessToken, stockID string, shares int64, idem string) (game.PurchaseResult, error) {
	var out game.PurchaseResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/stocks/"+url.PathEscape(stockID)+"/buy", accessToken, map[string]any{
		"shares": shares,
	}, &out, idem)
	return out, err
}

func (c *Client) SellShares(ctx context.Context, accessToken, stockID string, shares int64, idem string) (game.SaleResult, error) {
	var out game.SaleResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/stocks/"+url.PathEscape(stockID)+"/sell", accessToken, map[string]any{
		"shares": shares,
	}, &out, idem)
	return out, err
}

func (c *Client) Holdings(ctx context.Context, accessToken string) ([]game.StockHolding, error) {
	var out struct {
		Holdings []game.StockHolding `json:"holdings"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/holdings", accessToken, nil, &out, "")
	return out.Holdings, err
}

func (c *Client) EarningsToday(ctx context.Context, accessToken string) (int64, error) {
	var out struct {
		EarningsMicros int64 `json:"earnings_micros"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/earnings/today", accessToken, nil, &out, "")
	return out.EarningsMicros, err
}

func (c *Client) DividendsToday(ctx context.Context, accessToken string) (int64, error) {
	var out struct {
		DividendsMicros int64 `json:"dividends_micros"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/dividends/today", accessToken, nil, &out, "")
	return out.DividendsMicros, err
}

func (c *Client) DividendDebug(ctx context.Context, accessToken string) (game.DividendDebugInfo, error) {
	var out game.DividendDebugInfo
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/debug/dividends", accessToken, nil, &out, "")
	return out, err
}

// Do sends a raw command, used when replaying the offline queue.
func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, method, path, accessToken, in, &out, idem)
	return out, err
}

func habitPath(habitID, action string) string {
	p := "/v1/habits/" + url.PathEscape(habitID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
