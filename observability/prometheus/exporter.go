// Package prometheus exports firmware Stats snapshots as Prometheus
// metrics. The firmware side stays pull-free: the application collects
// snapshots from a periodic status task (or a test) by calling Collect.
package prometheus

import (
	"errors"
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/softmcu/executor"
	"github.com/ardnew/softmcu/timer"
	"github.com/ardnew/softmcu/usb"
	"github.com/ardnew/softmcu/wake"
)

// ExecutorStatsProvider provides executor stats snapshots.
type ExecutorStatsProvider interface {
	Stats() executor.Stats
}

// TimerStatsProvider provides timer driver stats snapshots.
type TimerStatsProvider interface {
	Stats() timer.Stats
}

// RegistryStatsProvider provides wake registry stats snapshots.
type RegistryStatsProvider interface {
	Stats() wake.Stats
}

// StackStatsProvider provides USB stack stats snapshots.
type StackStatsProvider interface {
	Stats() usb.StackStats
}

// Exporter mirrors Stats() snapshots from registered firmware components
// into Prometheus gauges on each Collect call.
type Exporter struct {
	mu        sync.RWMutex
	executors map[string]ExecutorStatsProvider
	timers    map[string]TimerStatsProvider
	wakes     map[string]RegistryStatsProvider
	stacks    map[string]StackStatsProvider

	executorTasks       *prom.GaugeVec
	executorRemaining   *prom.GaugeVec
	executorPolls       *prom.GaugeVec
	executorCompletions *prom.GaugeVec
	executorFaults      *prom.GaugeVec

	timerPending   *prom.GaugeVec
	timerScheduled *prom.GaugeVec
	timerFired     *prom.GaugeVec
	timerCancelled *prom.GaugeVec

	wakeWakes  *prom.GaugeVec
	wakeDrains *prom.GaugeVec

	usbSetups     *prom.GaugeVec
	usbStalls     *prom.GaugeVec
	usbResets     *prom.GaugeVec
	usbPacketsIn  *prom.GaugeVec
	usbPacketsOut *prom.GaugeVec
}

// NewExporter creates an exporter and registers its collectors.
func NewExporter(namespace string, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = "softmcu"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	e := &Exporter{
		executors: make(map[string]ExecutorStatsProvider),
		timers:    make(map[string]TimerStatsProvider),
		wakes:     make(map[string]RegistryStatsProvider),
		stacks:    make(map[string]StackStatsProvider),

		executorTasks:       gauge("executor_tasks", "Registered tasks per executor.", "executor"),
		executorRemaining:   gauge("executor_remaining", "Tasks not yet completed per executor.", "executor"),
		executorPolls:       gauge("executor_polls_total", "Task polls snapshot per executor.", "executor"),
		executorCompletions: gauge("executor_completions_total", "Task completions snapshot per executor.", "executor"),
		executorFaults:      gauge("executor_faults_total", "Task faults snapshot per executor.", "executor"),

		timerPending:   gauge("timer_pending_alarms", "Alarms currently queued per timer driver.", "driver"),
		timerScheduled: gauge("timer_scheduled_total", "Alarms accepted snapshot per timer driver.", "driver"),
		timerFired:     gauge("timer_fired_total", "Alarms fired snapshot per timer driver.", "driver"),
		timerCancelled: gauge("timer_cancelled_total", "Alarms retracted snapshot per timer driver.", "driver"),

		wakeWakes:  gauge("wake_wakes_total", "Ready-flag sets snapshot per wake registry.", "registry"),
		wakeDrains: gauge("wake_drains_total", "Ready-set drains snapshot per wake registry.", "registry"),

		usbSetups:     gauge("usb_setups_total", "SETUP transactions snapshot per USB stack.", "stack"),
		usbStalls:     gauge("usb_stalls_total", "Stalled control requests snapshot per USB stack.", "stack"),
		usbResets:     gauge("usb_resets_total", "Bus resets snapshot per USB stack.", "stack"),
		usbPacketsIn:  gauge("usb_packets_in_total", "OUT packets received snapshot per USB stack.", "stack"),
		usbPacketsOut: gauge("usb_packets_out_total", "IN packets transmitted snapshot per USB stack.", "stack"),
	}

	var err error
	for _, vec := range []**prom.GaugeVec{
		&e.executorTasks, &e.executorRemaining, &e.executorPolls,
		&e.executorCompletions, &e.executorFaults,
		&e.timerPending, &e.timerScheduled, &e.timerFired, &e.timerCancelled,
		&e.wakeWakes, &e.wakeDrains,
		&e.usbSetups, &e.usbStalls, &e.usbResets,
		&e.usbPacketsIn, &e.usbPacketsOut,
	} {
		if *vec, err = registerCollector(reg, *vec); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (e *Exporter) AddExecutor(name string, provider ExecutorStatsProvider) {
	if e == nil || provider == nil {
		return
	}
	e.mu.Lock()
	e.executors[normalizeLabel(name, "executor")] = provider
	e.mu.Unlock()
}

// AddTimer adds or replaces a timer driver snapshot provider by name.
func (e *Exporter) AddTimer(name string, provider TimerStatsProvider) {
	if e == nil || provider == nil {
		return
	}
	e.mu.Lock()
	e.timers[normalizeLabel(name, "driver")] = provider
	e.mu.Unlock()
}

// AddRegistry adds or replaces a wake registry snapshot provider by name.
func (e *Exporter) AddRegistry(name string, provider RegistryStatsProvider) {
	if e == nil || provider == nil {
		return
	}
	e.mu.Lock()
	e.wakes[normalizeLabel(name, "registry")] = provider
	e.mu.Unlock()
}

// AddStack adds or replaces a USB stack snapshot provider by name.
func (e *Exporter) AddStack(name string, provider StackStatsProvider) {
	if e == nil || provider == nil {
		return
	}
	e.mu.Lock()
	e.stacks[normalizeLabel(name, "stack")] = provider
	e.mu.Unlock()
}

// Collect pulls a snapshot from every registered provider into the
// gauges. Call it from a periodic status task or before scraping.
func (e *Exporter) Collect() {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	for name, provider := range e.executors {
		stats := provider.Stats()
		e.executorTasks.WithLabelValues(name).Set(float64(stats.Tasks))
		e.executorRemaining.WithLabelValues(name).Set(float64(stats.Remaining))
		e.executorPolls.WithLabelValues(name).Set(float64(stats.Polls))
		e.executorCompletions.WithLabelValues(name).Set(float64(stats.Completions))
		e.executorFaults.WithLabelValues(name).Set(float64(stats.Faults))
	}
	for name, provider := range e.timers {
		stats := provider.Stats()
		e.timerPending.WithLabelValues(name).Set(float64(stats.Pending))
		e.timerScheduled.WithLabelValues(name).Set(float64(stats.Scheduled))
		e.timerFired.WithLabelValues(name).Set(float64(stats.Fired))
		e.timerCancelled.WithLabelValues(name).Set(float64(stats.Cancelled))
	}
	for name, provider := range e.wakes {
		stats := provider.Stats()
		e.wakeWakes.WithLabelValues(name).Set(float64(stats.Wakes))
		e.wakeDrains.WithLabelValues(name).Set(float64(stats.Drains))
	}
	for name, provider := range e.stacks {
		stats := provider.Stats()
		e.usbSetups.WithLabelValues(name).Set(float64(stats.Setups))
		e.usbStalls.WithLabelValues(name).Set(float64(stats.Stalls))
		e.usbResets.WithLabelValues(name).Set(float64(stats.Resets))
		e.usbPacketsIn.WithLabelValues(name).Set(float64(stats.PacketsIn))
		e.usbPacketsOut.WithLabelValues(name).Set(float64(stats.PacketsOut))
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
