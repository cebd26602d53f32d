package energyid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/diftar2energyid/internal/session"
	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// Destination is the webhook URL and pass-through properties for a category.
type Destination struct {
	URL        string
	Properties map[string]any
}

// Destinations resolves the destination configured for a category.
type Destinations interface {
	Destination(category waste.Category) (Destination, bool)
}

// DestinationMap is a Destinations backed by a map.
type DestinationMap map[waste.Category]Destination

// Destination implements Destinations.
func (m DestinationMap) Destination(category waste.Category) (Destination, bool) {
	d, ok := m[category]
	return d, ok
}

// Outcome is the terminal state of one category.
type Outcome string

// Category outcomes.
const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeUnconfigured Outcome = "unconfigured"
	OutcomeEmpty        Outcome = "empty"
	OutcomeFailed       Outcome = "failed"
	OutcomeDryRun       Outcome = "dry_run"
)

// Result records what happened to one category.
type Result struct {
	Category waste.Category
	Outcome  Outcome
	Count    int
}

// Config controls the webhook session.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// DryRun composes and logs payloads without sending them.
	DryRun bool
}

// Publisher posts category batches to their destinations.
type Publisher struct {
	cfg          Config
	destinations Destinations
	logger       *zap.Logger
}

// New builds a Publisher.
func New(cfg Config, destinations Destinations, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, destinations: destinations, logger: logger}
}

// PublishBatch walks every category in delivery order: unconfigured and empty
// categories are skipped, the rest are composed and posted. The first failed
// post stops the walk; results up to and including it are returned.
// The webhook session is opened here and closed before returning, and never
// shares cookies with the portal session.
func (p *Publisher) PublishBatch(ctx context.Context, batch waste.Batch) ([]Result, error) {
	var s *session.Session
	if !p.cfg.DryRun {
		var err error
		s, err = session.New(session.Config{UserAgent: p.cfg.UserAgent, Timeout: p.cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("open webhook session: %w", err)
		}
		defer s.Close()
	}

	results := make([]Result, 0, len(waste.Categories()))
	for _, category := range waste.Categories() {
		log := p.logger.With(zap.Stringer("category", category))

		dest, ok := p.destinations.Destination(category)
		if !ok {
			log.Info("No destination configured; skipping")
			results = append(results, Result{Category: category, Outcome: OutcomeUnconfigured})
			continue
		}
		measurements := batch.Get(category)
		if len(measurements) == 0 {
			log.Info("No measurements; skipping")
			results = append(results, Result{Category: category, Outcome: OutcomeEmpty})
			continue
		}

		payload := Compose(category, dest.Properties, measurements)
		body, err := json.Marshal(payload)
		if err != nil {
			results = append(results, Result{Category: category, Outcome: OutcomeFailed, Count: len(measurements)})
			return results, fmt.Errorf("encode %s payload: %w", category, err)
		}

		log = log.With(
			zap.String("payload_sha256", Fingerprint(body)),
			zap.Int("count", len(measurements)),
			zap.Stringer("first", measurements[0].Date),
			zap.Stringer("last", measurements[len(measurements)-1].Date),
		)
		if p.cfg.DryRun {
			log.Info("Dry run; payload not sent", zap.ByteString("payload", body))
			results = append(results, Result{Category: category, Outcome: OutcomeDryRun, Count: len(measurements)})
			continue
		}

		log.Info("Submitting measurements")
		if err := p.post(ctx, s, category, dest.URL, body); err != nil {
			results = append(results, Result{Category: category, Outcome: OutcomeFailed, Count: len(measurements)})
			return results, err
		}
		results = append(results, Result{Category: category, Outcome: OutcomeDelivered, Count: len(measurements)})
	}
	return results, nil
}

func (p *Publisher) post(ctx context.Context, s *session.Session, category waste.Category, url string, body []byte) error {
	resp, err := s.PostJSON(ctx, url, body)
	if err != nil {
		return &DeliveryError{Category: category, URL: url, Err: err}
	}
	if !resp.OK() {
		return &DeliveryError{Category: category, URL: url, StatusCode: resp.StatusCode, Body: truncate(resp.Body, 512)}
	}
	return nil
}

// Fingerprint is the hex SHA-256 of an encoded payload. Identical batches
// have identical fingerprints, which makes repeated deliveries easy to spot
// in the logs.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
