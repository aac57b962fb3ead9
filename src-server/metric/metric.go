package metric

import (
	"context"
	"log/slog"
	"time"

	"meetroom/src-server/model"
	"meetroom/src-server/roomsync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

// Metrics is the prometheus side of the engine and the scheduler.
type Metrics struct {
	transitions        *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	roomSync           *prometheus.CounterVec
	externalFailures   *prometheus.CounterVec
	activities         prometheus.Counter
	activitiesPurged   prometheus.Counter
	reminders          prometheus.Counter
	databaseEmptyRead  prometheus.Gauge
	notifySendDuration prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetroom_event_transitions_total",
			Help: "Committed event state transitions",
		}, []string{"from", "to"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetroom_conflicts_total",
			Help: "Writes rejected by the conflict detector",
		}, []string{"dimension"}),
		roomSync: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetroom_room_sync_total",
			Help: "Room bookings written by forward sync",
		}, []string{"op"}),
		externalFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetroom_external_failures_total",
			Help: "Failed calls to virtual meeting providers",
		}, []string{"provider", "op"}),
		activities: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetroom_activities_regenerated_total",
			Help: "Activity entries rebuilt for confirmed events",
		}),
		activitiesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetroom_activities_purged_total",
			Help: "Activity entries removed after their deadline",
		}),
		reminders: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetroom_reminders_dispatched_total",
			Help: "Reminders handed to the notifier",
		}),
		databaseEmptyRead: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetroom_database_empty_read_microsec",
			Help: "The latency of an empty database read in microseconds",
		}),
		notifySendDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetroom_notify_send_microsec",
			Help: "The latency of the last reminder batch send in microseconds",
		}),
	}
}

func (m *Metrics) Transition(from, to model.State) {
	if from == "" {
		from = "new"
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) Conflict(dimension model.Dimension) {
	m.conflicts.WithLabelValues(string(dimension)).Inc()
}

func (m *Metrics) RoomSync(result roomsync.Result) {
	m.roomSync.WithLabelValues("create").Add(float64(result.Created))
	m.roomSync.WithLabelValues("update").Add(float64(result.Updated))
	m.roomSync.WithLabelValues("cancel").Add(float64(result.Cancelled))
}

func (m *Metrics) ExternalFailure(provider, op string) {
	m.externalFailures.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) ActivitiesRegenerated(n int) {
	m.activities.Add(float64(n))
}

func (m *Metrics) ActivitiesPurged(n int64) {
	m.activitiesPurged.Add(float64(n))
}

func (m *Metrics) RemindersDispatched(n int, took time.Duration) {
	m.reminders.Add(float64(n))
	m.notifySendDuration.Set(float64(took.Microseconds()))
}

// WatchDatabase samples the latency of an empty read every interval until
// ctx is done.
func (m *Metrics) WatchDatabase(ctx context.Context, db bun.IDB, interval time.Duration) {
	m.databaseEmptyRead.Set(0)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("database latency watcher stopped")
				return
			case <-ticker.C:
				latency, err := emptyRead(ctx, db)
				if err != nil {
					slog.Error("can't get database latency", "error", err)
					continue
				}
				m.databaseEmptyRead.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

func emptyRead(ctx context.Context, db bun.IDB) (time.Duration, error) {
	start := time.Now()
	if _, err := db.NewSelect().
		Model((*model.Event)(nil)).
		Where("ev.id = ?", "").
		Exists(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
