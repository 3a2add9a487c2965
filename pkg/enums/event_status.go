package enums

// WebhookEventStatus tracks the lifecycle of an ingested webhook event.
// An event is created Pending and takes exactly one terminal transition.
type WebhookEventStatus string

const (
	EventStatusPending   WebhookEventStatus = "PENDING"
	EventStatusProcessed WebhookEventStatus = "PROCESSED"
	EventStatusInvalid   WebhookEventStatus = "INVALID"
	EventStatusFailed    WebhookEventStatus = "FAILED"
)

// Terminal reports whether the status is a terminal one.
func (s WebhookEventStatus) Terminal() bool {
	return s == EventStatusProcessed || s == EventStatusInvalid || s == EventStatusFailed
}
