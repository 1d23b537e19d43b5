package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hiketracker/hiketracker/tracker/internal/config"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 100
)

// Alert is one alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules after every fetch and delivers webhook
// notifications when a rule fires or resolves. Observers never see alerts.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	metrics  *metrics.Metrics
	client   *http.Client
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Alert
	lastFire map[string]time.Time
	history  []*Alert
	pending  sync.WaitGroup
}

// New creates an Engine from the alert configuration. Every rule condition
// is parsed up front. An Engine without rules is valid; Evaluate is a no-op.
func New(cfg config.AlertsConfig, m *metrics.Metrics) (*Engine, error) {
	e := &Engine{
		webhooks: cfg.Webhooks,
		metrics:  m,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: c})
	}
	return e, nil
}

// Evaluate tests all rules against in. Rules that start to hold fire (subject
// to their cooldown); firing rules that no longer hold resolve. Webhooks are
// delivered asynchronously.
func (e *Engine) Evaluate(in Input) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, r := range e.rules {
		fires, value := r.cond.eval(in)

		e.mu.Lock()
		a, isActive := e.active[r.Name]
		switch {
		case fires && !isActive:
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if last, ok := e.lastFire[r.Name]; ok && now.Sub(last) < cooldown {
				e.mu.Unlock()
				continue
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a = &Alert{
				ID:       fmt.Sprintf("%s:%d", r.Name, now.UnixNano()),
				RuleName: r.Name,
				Severity: sev,
				Value:    value,
				Message:  fmt.Sprintf("[%s] %s fired: %s (value %.2f)", sev, r.Name, r.Condition, value),
				FiredAt:  now,
				State:    "firing",
			}
			e.active[r.Name] = a
			e.lastFire[r.Name] = now
			alertCopy := *a
			e.mu.Unlock()

			slog.Warn("alerts: alert fired", "rule", r.Name, "value", value, "severity", sev)
			e.metrics.AlertFired(r.Name)
			e.dispatch(&alertCopy)

		case !fires && isActive:
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			delete(e.active, r.Name)
			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			alertCopy := *a
			e.mu.Unlock()

			slog.Info("alerts: alert resolved", "rule", r.Name)
			e.dispatch(&alertCopy)

		default:
			e.mu.Unlock()
		}
	}
}

// Active returns copies of the currently firing alerts followed by recently
// resolved ones, newest resolution first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alert, 0, len(e.active)+len(e.history))
	for _, a := range e.active {
		out = append(out, *a)
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		out = append(out, *e.history[i])
	}
	return out
}

// Wait blocks until every webhook delivery started so far has finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}

func (e *Engine) dispatch(a *Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		e.deliver(a)
	}()
}
