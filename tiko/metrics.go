package tiko

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	refreshSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiko_refresh_success_total",
		Help: "Successful refresh cycles",
	})
	refreshFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiko_refresh_failure_total",
		Help: "Failed refresh cycles",
	})
	loginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiko_login_success_total",
		Help: "Successful login handshakes",
	})
	loginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiko_login_failure_total",
		Help: "Failed login handshakes",
	})
)

// Collectors returns everything the package exports to a metrics
// registry: the snapshot-backed collector plus the cycle and login
// counters.
func Collectors(coordinator *Coordinator) []prometheus.Collector {
	return []prometheus.Collector{
		NewMetricsCollector(coordinator),
		refreshSuccessTotal,
		refreshFailureTotal,
		loginSuccessTotal,
		loginFailureTotal,
	}
}

// MetricsCollector exposes the coordinator's snapshot as prometheus
// metrics. Collection reads the retained snapshot only; it never
// touches the network.
type MetricsCollector struct {
	coordinator *Coordinator

	temp         *prometheus.GaugeVec
	target       *prometheus.GaugeVec
	humidity     *prometheus.GaugeVec
	heating      *prometheus.GaugeVec
	disconnected *prometheus.GaugeVec
	devices      prometheus.Gauge
	lastRefresh  prometheus.Gauge
	healthy      prometheus.Gauge
}

func NewMetricsCollector(coordinator *Coordinator) *MetricsCollector {
	labels := []string{"room_id", "room_name"}
	return &MetricsCollector{
		coordinator: coordinator,
		temp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiko_room_temperature_celsius",
			Help: "Current temperature per room",
		}, labels),
		target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiko_room_target_temperature_celsius",
			Help: "Target temperature per room",
		}, labels),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiko_room_humidity_percent",
			Help: "Current humidity per room",
		}, labels),
		heating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiko_room_heating_bool",
			Help: "Heating active per room (1=heating, 0=idle)",
		}, labels),
		disconnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiko_room_disconnected_bool",
			Help: "Room reported disconnected (1=disconnected)",
		}, labels),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tiko_devices",
			Help: "Devices installed on the property",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tiko_last_refresh_timestamp_seconds",
			Help: "Last successful refresh timestamp (epoch seconds)",
		}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tiko_refresh_healthy",
			Help: "Last refresh cycle outcome (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.temp.Describe(ch)
	c.target.Describe(ch)
	c.humidity.Describe(ch)
	c.heating.Describe(ch)
	c.disconnected.Describe(ch)
	c.devices.Describe(ch)
	c.lastRefresh.Describe(ch)
	c.healthy.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.coordinator.Snapshot()

	c.temp.Reset()
	c.target.Reset()
	c.humidity.Reset()
	c.heating.Reset()
	c.disconnected.Reset()

	for _, room := range snapshot.Rooms {
		labels := prometheus.Labels{
			"room_id":   room.ID,
			"room_name": room.Name,
		}
		if room.CurrentTemperature != nil {
			c.temp.With(labels).Set(*room.CurrentTemperature)
		}
		if room.TargetTemperature != nil {
			c.target.With(labels).Set(*room.TargetTemperature)
		}
		if room.Humidity != nil {
			c.humidity.With(labels).Set(*room.Humidity)
		}
		c.heating.With(labels).Set(boolToFloat(room.Status.HeatingOperating))
		c.disconnected.With(labels).Set(boolToFloat(room.Status.Disconnected))
	}

	c.devices.Set(float64(len(snapshot.Devices)))
	if !snapshot.FetchedAt.IsZero() {
		c.lastRefresh.Set(float64(snapshot.FetchedAt.Unix()))
	}
	c.healthy.Set(boolToFloat(c.coordinator.LastError() == nil))

	c.temp.Collect(ch)
	c.target.Collect(ch)
	c.humidity.Collect(ch)
	c.heating.Collect(ch)
	c.disconnected.Collect(ch)
	c.devices.Collect(ch)
	c.lastRefresh.Collect(ch)
	c.healthy.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
