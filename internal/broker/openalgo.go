package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"HorizonTrader/internal/model"
)

// OpenAlgo talks to an OpenAlgo-style REST gateway (/funds, /ltp, /positions, /orders).
// Orders are whole-share MARKET orders; fills are approximated by the LTP seen before placing.
type OpenAlgo struct {
	client   *resty.Client
	exchange string
	product  string
}

// OpenAlgoConfig configures the REST broker.
type OpenAlgoConfig struct {
	BaseURL  string
	APIKey   string
	Exchange string
	Product  string
	Timeout  time.Duration
	Proxy    string
}

func NewOpenAlgo(cfg OpenAlgoConfig) *OpenAlgo {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		c.SetHeader("X-API-KEY", cfg.APIKey)
	}
	if cfg.Proxy != "" {
		c.SetProxy(cfg.Proxy)
	}
	return &OpenAlgo{client: c, exchange: cfg.Exchange, product: cfg.Product}
}

func (b *OpenAlgo) Name() string { return "openalgo" }

func (b *OpenAlgo) instrument(symbol string) string {
	return b.exchange + ":" + strings.ToUpper(strings.TrimSpace(symbol))
}

// flexFloat accepts numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (b *OpenAlgo) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := b.client.R().SetContext(ctx).SetQueryParams(params).Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return json.Unmarshal(resp.Body(), out)
}

func (b *OpenAlgo) AccountBalances(ctx context.Context) (model.Account, error) {
	var j struct {
		Equity flexFloat `json:"equity"`
		Cash   flexFloat `json:"cash"`
	}
	if err := b.get(ctx, "/funds", nil, &j); err != nil {
		return model.Account{}, wrap("balances", "", err)
	}
	eq := float64(j.Equity)
	return model.Account{Cash: float64(j.Cash), Equity: eq, BuyingPower: eq, PortfolioValue: eq}, nil
}

func (b *OpenAlgo) LastPrice(ctx context.Context, symbol string) (float64, error) {
	inst := b.instrument(symbol)
	var j struct {
		LTP map[string]flexFloat `json:"ltp"`
	}
	if err := b.get(ctx, "/ltp", map[string]string{"i": inst}, &j); err != nil {
		return 0, wrap("last_price", symbol, err)
	}
	px := float64(j.LTP[inst])
	if px <= 0 {
		return 0, wrap("last_price", symbol, ErrNoPrice)
	}
	return px, nil
}

func (b *OpenAlgo) Positions(ctx context.Context) ([]Position, error) {
	var j struct {
		Data []struct {
			TradingSymbol string    `json:"tradingsymbol"`
			Symbol        string    `json:"symbol"`
			Quantity      flexFloat `json:"quantity"`
			Qty           flexFloat `json:"qty"`
			AveragePrice  flexFloat `json:"average_price"`
			AvgEntry      flexFloat `json:"avg_entry_price"`
			LastPrice     flexFloat `json:"last_price"`
			CurrentPrice  flexFloat `json:"current_price"`
		} `json:"data"`
	}
	if err := b.get(ctx, "/positions", nil, &j); err != nil {
		return nil, wrap("positions", "", err)
	}
	out := make([]Position, 0, len(j.Data))
	for _, p := range j.Data {
		pos := Position{
			Symbol:       firstString(p.TradingSymbol, p.Symbol),
			Qty:          firstNonZero(float64(p.Quantity), float64(p.Qty)),
			AvgPrice:     firstNonZero(float64(p.AveragePrice), float64(p.AvgEntry)),
			CurrentPrice: firstNonZero(float64(p.LastPrice), float64(p.CurrentPrice)),
		}
		out = append(out, pos)
	}
	return out, nil
}

func (b *OpenAlgo) place(ctx context.Context, symbol, side string, qty float64) (string, error) {
	whole := math.Floor(qty)
	if whole < 1 {
		return "", fmt.Errorf("qty must be >= 1 for equities, got %.6f", qty)
	}
	payload := map[string]any{
		"tradingsymbol":    strings.ToUpper(symbol),
		"exchange":         b.exchange,
		"transaction_type": side,
		"order_type":       "MARKET",
		"product":          b.product,
		"quantity":         int64(whole),
		"validity":         "DAY",
	}
	var j struct {
		OrderID json.RawMessage `json:"order_id"`
		Data    struct {
			OrderID json.RawMessage `json:"order_id"`
		} `json:"data"`
	}
	resp, err := b.client.R().SetContext(ctx).SetBody(payload).Post("/orders")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("POST /orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), &j); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	id := rawID(j.OrderID)
	if id == "" {
		id = rawID(j.Data.OrderID)
	}
	if id == "" {
		return "", fmt.Errorf("order response without order_id: %s", resp.String())
	}
	return id, nil
}

func (b *OpenAlgo) MarketBuyQty(ctx context.Context, symbol string, qty float64) (model.Fill, error) {
	ltp, err := b.LastPrice(ctx, symbol)
	if err != nil {
		return model.Fill{}, err
	}
	id, err := b.place(ctx, symbol, "BUY", qty)
	if err != nil {
		return model.Fill{}, wrap("buy", symbol, err)
	}
	return model.Fill{OrderID: id, Qty: math.Floor(qty), AvgPrice: ltp}, nil
}

func (b *OpenAlgo) ClosePosition(ctx context.Context, symbol string) (string, error) {
	positions, err := b.Positions(ctx)
	if err != nil {
		return "", wrap("close", symbol, err)
	}
	var qty float64
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) {
			qty = p.Qty
			break
		}
	}
	if qty <= 0 {
		return "", wrap("close", symbol, fmt.Errorf("broker reports no position"))
	}
	id, err := b.place(ctx, symbol, "SELL", qty)
	if err != nil {
		return "", wrap("close", symbol, err)
	}
	return id, nil
}

func rawID(raw json.RawMessage) string {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "null" {
		return ""
	}
	return s
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
