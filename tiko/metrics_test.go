package tiko

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsCollector(t *testing.T) {
	f := newFakeService(t)
	coordinator := newTestCoordinator(t, f)

	if err := coordinator.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer coordinator.Stop()

	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(NewMetricsCollector(coordinator)); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		byName[family.GetName()] = family
	}

	temps, ok := byName["tiko_room_temperature_celsius"]
	if !ok {
		t.Fatalf("temperature metric missing")
	}
	if got := gaugeFor(t, temps, "42"); got != 19.5 {
		t.Fatalf("room 42 temperature = %v, want 19.5", got)
	}

	// Room 43 reports no target; only room 42 contributes a sample.
	targets, ok := byName["tiko_room_target_temperature_celsius"]
	if !ok {
		t.Fatalf("target metric missing")
	}
	if len(targets.GetMetric()) != 1 {
		t.Fatalf("target samples = %d, want 1", len(targets.GetMetric()))
	}

	devices, ok := byName["tiko_devices"]
	if !ok || devices.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatalf("devices gauge: %v", devices)
	}
	healthy, ok := byName["tiko_refresh_healthy"]
	if !ok || healthy.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatalf("healthy gauge: %v", healthy)
	}
	if _, ok := byName["tiko_last_refresh_timestamp_seconds"]; !ok {
		t.Fatalf("last refresh metric missing")
	}
}

func TestMetricsReportUnhealthyAfterFailure(t *testing.T) {
	f := newFakeService(t)
	coordinator := newTestCoordinator(t, f)
	ctx := context.Background()

	if err := coordinator.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer coordinator.Stop()

	f.set(func(f *fakeService) { f.failStatus = 500 })
	_ = coordinator.RequestRefresh(ctx)

	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(NewMetricsCollector(coordinator)); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "tiko_refresh_healthy" {
			continue
		}
		if value := family.GetMetric()[0].GetGauge().GetValue(); value != 0 {
			t.Fatalf("healthy = %v after failed cycle, want 0", value)
		}
		return
	}
	t.Fatalf("healthy metric missing")
}

// gaugeFor returns the gauge value for the sample labelled with the
// given room_id.
func gaugeFor(t *testing.T, family *dto.MetricFamily, roomID string) float64 {
	t.Helper()
	for _, metric := range family.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "room_id" && label.GetValue() == roomID {
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("no sample for room %s", roomID)
	return 0
}
