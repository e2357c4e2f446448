package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"rebeca/internal/modules/despatch"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/types"
)

type fakeStore struct {
	clients map[types.ID]Client
	stats   []CancellationStat
	flags   []FraudFlag
}

func newFakeStore() *fakeStore {
	return &fakeStore{clients: map[types.ID]Client{}}
}

func (f *fakeStore) CreateClient(_ context.Context, c *Client) error {
	f.clients[c.ID] = *c
	return nil
}

func (f *fakeStore) GetClient(_ context.Context, id types.ID) (*Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) ListClients(context.Context) ([]Client, error) { return nil, nil }

func (f *fakeStore) CancellationStats(context.Context, time.Time, int) ([]CancellationStat, error) {
	return f.stats, nil
}

func (f *fakeStore) InsertFlag(_ context.Context, fl *FraudFlag) error {
	f.flags = append(f.flags, *fl)
	return nil
}

func (f *fakeStore) ListFlags(context.Context, int) ([]FraudFlag, error) {
	return f.flags, nil
}

type fakeTariffs struct {
	rules map[string]pricing.Rule
}

func (f *fakeTariffs) UpsertRule(_ context.Context, r pricing.Rule) error {
	if f.rules == nil {
		f.rules = map[string]pricing.Rule{}
	}
	f.rules[r.Category] = r
	return nil
}

func (f *fakeTariffs) ListRules(context.Context) ([]pricing.Rule, error) { return nil, nil }

func newTestService(store *fakeStore, tariffs *fakeTariffs) *Service {
	engine := despatch.NewEngine(despatch.Settings{}, nil)
	return NewService(store, tariffs, engine, nil)
}

func TestRegisterClient(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store, &fakeTariffs{})

	id, err := s.RegisterClient(context.Background(), RegisterClientCommand{Name: "Marina", Phone: "+5511987650001"})
	if err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	if _, err := s.GetClient(context.Background(), id); err != nil {
		t.Fatalf("GetClient after register: %v", err)
	}

	if _, err := s.RegisterClient(context.Background(), RegisterClientCommand{Name: "", Phone: "x"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestSetPricingRule_Validation(t *testing.T) {
	tariffs := &fakeTariffs{}
	s := newTestService(newFakeStore(), tariffs)

	good := pricing.Rule{Category: "standard", BaseFare: 500, PerKm: 180, PerMin: 40, MinFare: 800, NightMultiplier: 1.2, Currency: "BRL"}
	if err := s.SetPricingRule(context.Background(), good); err != nil {
		t.Fatalf("SetPricingRule: %v", err)
	}
	if _, ok := tariffs.rules["standard"]; !ok {
		t.Fatal("rule not stored")
	}

	bad := []pricing.Rule{
		{Category: "", Currency: "BRL", NightMultiplier: 1},
		{Category: "standard", Currency: "", NightMultiplier: 1},
		{Category: "standard", Currency: "BRL", BaseFare: -1, NightMultiplier: 1},
		{Category: "standard", Currency: "BRL", NightMultiplier: 0.5},
	}
	for _, r := range bad {
		if err := s.SetPricingRule(context.Background(), r); !errors.Is(err, pricing.ErrBadRule) {
			t.Fatalf("rule %+v: err = %v, want ErrBadRule", r, err)
		}
	}
}

func TestConfigureDespatch(t *testing.T) {
	s := newTestService(newFakeStore(), &fakeTariffs{})

	set, err := s.ConfigureDespatch("broadcast", 45, 2)
	if err != nil {
		t.Fatalf("ConfigureDespatch: %v", err)
	}
	if set.Mode != despatch.ModeBroadcast || set.AcceptWindow != 45*time.Second || set.MaxAttempts != 2 {
		t.Fatalf("settings = %+v", set)
	}

	if _, err := s.ConfigureDespatch("carrier-pigeon", 0, 0); !errors.Is(err, despatch.ErrInvalidMode) {
		t.Fatalf("err = %v, want ErrInvalidMode", err)
	}
}

func TestScanFraud(t *testing.T) {
	store := newFakeStore()
	store.stats = []CancellationStat{
		{RiderID: "r1", Cancelled: 5, Total: 6}, // 0.83, flagged
		{RiderID: "r2", Cancelled: 1, Total: 8}, // 0.125, clean
		{RiderID: "r3", Cancelled: 3, Total: 5}, // 0.6, exactly at cutoff, flagged
	}
	s := newTestService(store, &fakeTariffs{})

	flagged, err := s.ScanFraud(context.Background())
	if err != nil {
		t.Fatalf("ScanFraud: %v", err)
	}
	if flagged != 2 {
		t.Fatalf("flagged = %d, want 2", flagged)
	}
	for _, f := range store.flags {
		if f.RiderID == "r2" {
			t.Fatal("clean rider flagged")
		}
	}
}
