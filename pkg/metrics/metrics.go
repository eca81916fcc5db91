// Package metrics holds the Prometheus collectors shared by the api and the
// cron worker. Every constructor tolerates a nil Registerer and every method
// a nil receiver, so callers can run without metrics wiring.
package metrics

const namespace = "storefront"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
