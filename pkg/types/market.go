package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Market represents a Polymarket market from the Gamma API.
type Market struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	EventSlug   string    `json:"eventSlug,omitempty"` // Populated from the enclosing event when listing by event
	ConditionID string    `json:"conditionId"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	EndDate     string    `json:"endDate,omitempty"` // Raw ISO timestamp; Gamma omits or truncates it for some markets
	Liquidity   float64   `json:"liquidity"`
	Volume      float64   `json:"volume"`
	Outcomes    []Outcome `json:"outcomesParsed,omitempty"` // Populated from outcomes + outcomePrices
}

// Outcome is a single tradable outcome of a market with its current price.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// UnmarshalJSON custom unmarshaler for the Gamma wire format. Gamma encodes
// outcomes and outcomePrices as JSON strings ("[\"Yes\", \"No\"]") and ships
// liquidity/volume both as numeric strings and as *Num floats.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		*Alias
		Outcomes      json.RawMessage `json:"outcomes"`
		OutcomePrices json.RawMessage `json:"outcomePrices"`
		Liquidity     json.RawMessage `json:"liquidity"`
		LiquidityNum  *float64        `json:"liquidityNum"`
		Volume        json.RawMessage `json:"volume"`
		VolumeNum     *float64        `json:"volumeNum"`
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	// Prefer the explicit *Num fields, fall back to the string-encoded ones.
	if aux.LiquidityNum != nil {
		m.Liquidity = *aux.LiquidityNum
	} else {
		m.Liquidity = looseFloat(aux.Liquidity)
	}
	if aux.VolumeNum != nil {
		m.Volume = *aux.VolumeNum
	} else {
		m.Volume = looseFloat(aux.Volume)
	}

	m.Outcomes = parseOutcomes(aux.Outcomes, aux.OutcomePrices)

	return nil
}

// parseOutcomes pairs outcome names with prices. Prices that do not parse are
// skipped; missing names fall back to Yes/No and then to positional labels.
func parseOutcomes(namesRaw, pricesRaw json.RawMessage) []Outcome {
	names := decodeStringList(namesRaw)
	prices := decodeStringList(pricesRaw)

	if len(names) == 0 {
		names = []string{"Yes", "No"}
	}

	if len(prices) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(prices))
	for i, raw := range prices {
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		name := fmt.Sprintf("Outcome %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		outcomes = append(outcomes, Outcome{Name: name, Price: price})
	}

	return outcomes
}

// decodeStringList accepts both a JSON array of strings and a JSON string
// containing an encoded array. Gamma uses the latter on /markets.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
		return nil
	}

	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return nil
	}

	return nested
}

// looseFloat parses a JSON number or numeric string, returning 0 on anything
// it cannot read. Gamma mixes both encodings across endpoints.
func looseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// OutcomePrice returns the price for the named outcome. Case-insensitive
// matching (accepts YES/Yes, NO/No).
func (m *Market) OutcomePrice(name string) (float64, bool) {
	for i := range m.Outcomes {
		if strings.EqualFold(m.Outcomes[i].Name, name) {
			return m.Outcomes[i].Price, true
		}
	}
	return 0, false
}

// URL returns the public market URL. Slug priority follows what resolves on
// polymarket.com: event slug, then market slug, then condition ID, then ID.
func (m *Market) URL() string {
	slug := m.EventSlug
	if slug == "" {
		slug = m.Slug
	}
	if slug == "" {
		slug = m.ConditionID
	}
	if slug == "" {
		slug = m.ID
	}
	if slug == "" {
		return ""
	}
	return "https://polymarket.com/event/" + slug
}
