package metrics

import (
	"sync"
	"time"

	"fundingwatch/logger"
)

// Metric represents a structured metric event emitted within the application.
type Metric struct {
	Timestamp time.Time     `json:"timestamp"`
	Component string        `json:"component"`
	Name      string        `json:"name"`
	Value     interface{}   `json:"value"`
	Type      string        `json:"type"`
	Fields    logger.Fields `json:"fields,omitempty"`
}

// MetricHandler consumes structured metric events for downstream processing.
type MetricHandler func(Metric)

// MetricHandlerID uniquely identifies a registered metric handler.
type MetricHandlerID uint64

var (
	metricHandlersMu    sync.RWMutex
	metricHandlers      = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID MetricHandlerID
)

// RegisterMetricHandler registers a handler that will receive every emitted metric.
// A zero identifier is returned when the provided handler is nil.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}

	metricHandlersMu.Lock()
	defer metricHandlersMu.Unlock()

	nextMetricHandlerID++
	id := nextMetricHandlerID
	metricHandlers[id] = handler
	return id
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}

	metricHandlersMu.Lock()
	delete(metricHandlers, id)
	metricHandlersMu.Unlock()
}

// recordMetric logs the event at debug level and hands it to every handler.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	userFields := cloneFields(fields)
	log.WithComponent(component).LogMetric(component, name, value, metricType, userFields)

	metric := Metric{
		Timestamp: timeNow(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    userFields,
	}

	dispatchMetric(metric)
	return metric, true
}

func dispatchMetric(metric Metric) {
	metricHandlersMu.RLock()
	handlers := make([]MetricHandler, 0, len(metricHandlers))
	for _, handler := range metricHandlers {
		handlers = append(handlers, handler)
	}
	metricHandlersMu.RUnlock()

	for _, handler := range handlers {
		handler(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}

// History keeps the most recent metric events for the status API.
type History struct {
	mu    sync.RWMutex
	items []Metric
	limit int
	id    MetricHandlerID
}

// NewHistory registers a bounded recorder. Call Close to detach it.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 200
	}
	h := &History{limit: limit}
	h.id = RegisterMetricHandler(h.handle)
	return h
}

func (h *History) handle(m Metric) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, m)
	if len(h.items) > h.limit {
		h.items = append([]Metric(nil), h.items[len(h.items)-h.limit:]...)
	}
}

// Snapshot returns the retained events, oldest first.
func (h *History) Snapshot() []Metric {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Metric, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Close() {
	UnregisterMetricHandler(h.id)
}
