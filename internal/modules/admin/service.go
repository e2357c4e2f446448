// README: Back-office service — client accounts, tariffs, despatch settings, fraud scan.
package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rebeca/internal/modules/despatch"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/types"
)

const (
	fraudScanWindow  = 7 * 24 * time.Hour
	fraudMinRides    = 5
	fraudRateCutoff  = 0.6
	fraudFlagsListed = 100
)

// Storage is the persistence surface the back office needs.
type Storage interface {
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id types.ID) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CancellationStats(ctx context.Context, since time.Time, minRides int) ([]CancellationStat, error)
	InsertFlag(ctx context.Context, f *FraudFlag) error
	ListFlags(ctx context.Context, limit int) ([]FraudFlag, error)
}

// Tariffs is the pricing-rule surface; the pricing store implements it.
type Tariffs interface {
	UpsertRule(ctx context.Context, r pricing.Rule) error
	ListRules(ctx context.Context) ([]pricing.Rule, error)
}

// Despatcher exposes the runtime knobs of the despatch engine.
type Despatcher interface {
	Configure(mode string, acceptWindowSeconds, maxAttempts int) (despatch.Settings, error)
	Stats() despatch.Stats
}

type Service struct {
	store    Storage
	tariffs  Tariffs
	despatch Despatcher
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Storage, tariffs Tariffs, despatcher Despatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, tariffs: tariffs, despatch: despatcher, log: log, now: time.Now}
}

type RegisterClientCommand struct {
	Name  string
	Phone string
}

func (s *Service) RegisterClient(ctx context.Context, cmd RegisterClientCommand) (types.ID, error) {
	if cmd.Name == "" || cmd.Phone == "" {
		return "", ErrBadRequest
	}
	c := &Client{
		ID:        types.ID(uuid.NewString()),
		Name:      cmd.Name,
		Phone:     cmd.Phone,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *Service) GetClient(ctx context.Context, id types.ID) (*Client, error) {
	return s.store.GetClient(ctx, id)
}

func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.store.ListClients(ctx)
}

// ConfigureDespatch applies runtime despatch settings.
func (s *Service) ConfigureDespatch(mode string, acceptWindowSeconds, maxAttempts int) (despatch.Settings, error) {
	return s.despatch.Configure(mode, acceptWindowSeconds, maxAttempts)
}

func (s *Service) DespatchStats() despatch.Stats {
	return s.despatch.Stats()
}

// SetPricingRule validates and stores a tariff.
func (s *Service) SetPricingRule(ctx context.Context, r pricing.Rule) error {
	if r.Category == "" || r.Currency == "" {
		return pricing.ErrBadRule
	}
	if r.BaseFare < 0 || r.PerKm < 0 || r.PerMin < 0 || r.MinFare < 0 {
		return pricing.ErrBadRule
	}
	if r.NightMultiplier < 1 {
		return pricing.ErrBadRule
	}
	if err := s.tariffs.UpsertRule(ctx, r); err != nil {
		return err
	}
	s.log.Info("pricing rule updated", zap.String("category", r.Category))
	return nil
}

func (s *Service) PricingRules(ctx context.Context) ([]pricing.Rule, error) {
	return s.tariffs.ListRules(ctx)
}

func (s *Service) FraudFlags(ctx context.Context) ([]FraudFlag, error) {
	return s.store.ListFlags(ctx, fraudFlagsListed)
}

// ScanFraud flags riders whose recent cancellation rate crossed the cutoff.
// Returns how many riders were flagged in this pass.
func (s *Service) ScanFraud(ctx context.Context) (int, error) {
	since := s.now().Add(-fraudScanWindow)
	stats, err := s.store.CancellationStats(ctx, since, fraudMinRides)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, st := range stats {
		if st.Total == 0 {
			continue
		}
		rate := float64(st.Cancelled) / float64(st.Total)
		if rate < fraudRateCutoff {
			continue
		}
		f := &FraudFlag{
			RiderID:   st.RiderID,
			Cancelled: st.Cancelled,
			Total:     st.Total,
			Rate:      rate,
			CreatedAt: s.now(),
		}
		if err := s.store.InsertFlag(ctx, f); err != nil {
			return flagged, err
		}
		flagged++
		s.log.Warn("rider flagged for cancellation abuse",
			zap.String("rider_id", string(st.RiderID)),
			zap.Int("cancelled", st.Cancelled),
			zap.Int("total", st.Total),
		)
	}
	return flagged, nil
}

// RunFraudMonitor runs ScanFraud on the given interval until the context is
// cancelled.
func (s *Service) RunFraudMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ScanFraud(ctx); err != nil {
				s.log.Warn("fraud scan failed", zap.Error(err))
			}
		}
	}
}
