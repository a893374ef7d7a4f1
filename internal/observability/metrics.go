package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"

	// Settlement-specific instruments.
	MSettlementRetries         MetricKey = "settlement_retries_total"
	MSettlementRollbacks       MetricKey = "settlement_rollbacks_total"
	MSettlementInconsistencies MetricKey = "settlement_inconsistencies_total"
)
