package metrics

import "fundingwatch/logger"

const cycleComponent = "funding_cycle"

// RecordCycle counts one completed cycle.
func RecordCycle(log *logger.Log, upcoming, digests int) {
	Init()
	logger.IncrementCycle()
	cyclesTotal.Inc()
	EmitMetric(log, cycleComponent, "upcoming_records", upcoming, "gauge", logger.Fields{"unit": "count"})
	EmitMetric(log, cycleComponent, "digests", digests, "gauge", logger.Fields{"unit": "count"})
}

// RecordFetch counts the outcome of one exchange fetch.
func RecordFetch(log *logger.Log, exchange string, records int, err error) {
	Init()
	fields := logger.Fields{"exchange": exchange, "unit": "count"}
	if err != nil {
		logger.IncrementFetchError()
		fetchErrorsTotal.WithLabelValues(exchange).Inc()
		EmitMetric(log, cycleComponent, "fetch_errors", 1, "counter", fields)
		return
	}

	logger.AddRecords(records)
	recordsTotal.WithLabelValues(exchange).Add(float64(records))
	EmitMetric(log, cycleComponent, "records_fetched", records, "counter", fields)
}

// RecordDigest counts one digest built for exchange.
func RecordDigest(exchange string) {
	Init()
	logger.AddDigests(1)
	digestsTotal.WithLabelValues(exchange).Inc()
}

// RecordDelivery counts one delivery attempt.
func RecordDelivery(log *logger.Log, notifier string, ok bool) {
	Init()
	logger.IncrementDelivery(ok)
	result := "ok"
	if !ok {
		result = "error"
	}
	deliveriesTotal.WithLabelValues(result).Inc()
	EmitMetric(log, "notifier", "deliveries", 1, "counter", logger.Fields{"notifier": notifier, "result": result, "unit": "count"})
}
