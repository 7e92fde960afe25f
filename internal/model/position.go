package model

// PositionRecord is the engine's view of one open holding.
type PositionRecord struct {
	Qty          float64    `json:"qty"`
	EntryPrice   float64    `json:"entry_price"`
	Notional     float64    `json:"notional"`
	Horizon      Horizon    `json:"horizon"`
	EnteredAt    Timestamp  `json:"entered_at"`
	TimeboxUntil *Timestamp `json:"timebox_until"`
}

// PaperHolding is a position inside the simulated paper account.
type PaperHolding struct {
	Qty      string `json:"qty"`
	AvgPrice string `json:"avg_price"`
}

// PaperState is the persisted paper-broker account. Amounts are decimal strings.
type PaperState struct {
	StartingEquity string                  `json:"starting_equity"`
	Cash           string                  `json:"cash"`
	Holdings       map[string]PaperHolding `json:"holdings"`
	UpdatedAt      Timestamp               `json:"updated_at"`
}
