package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"VaultLedger/internal/fixed"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/vault"
)

// PriceFeedSubject carries oracle valuations for collateral units. Only the
// latest price matters, so feeds ride core NATS rather than JetStream.
const PriceFeedSubject = "cdp.feeds.prices"

type priceUpdateJSON struct {
	UnitID uint64 `json:"unit_id"`
	Value  string `json:"value"` // decimal quote amount, e.g. "1234.56"
	Pool   string `json:"pool"`  // empty drops the price
}

// ApplyPriceUpdate parses one feed message and applies it to the oracle.
// Values arrive as human decimal strings and are floored into quote-scale
// fixed-point.
func ApplyPriceUpdate(data []byte, o *oracle.StaticOracle) error {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("parse price update: %w", err)
	}
	if j.Pool == "" {
		o.DropPrice(vault.UnitID(j.UnitID))
		return nil
	}
	value, err := fixed.FromDecimalString(j.Value, fixed.QuoteConfig)
	if err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("negative price %q for unit %d", j.Value, j.UnitID)
	}
	o.SetPrice(vault.UnitID(j.UnitID), value, vault.PoolID(j.Pool))
	log.Debug().Uint64("unit", j.UnitID).
		Str("value", fixed.ToDecimalString(value, fixed.QuoteConfig)).
		Str("pool", j.Pool).
		Msg("price updated")
	return nil
}

// SubscribePriceFeed connects the oracle to the NATS price feed.
func SubscribePriceFeed(nc *nats.Conn, o *oracle.StaticOracle) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(PriceFeedSubject, func(msg *nats.Msg) {
		if err := ApplyPriceUpdate(msg.Data, o); err != nil {
			log.Warn().Err(err).Msg("price update rejected")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe price feed: %w", err)
	}
	return sub, nil
}
