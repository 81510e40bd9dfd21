package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrder  NotificationType = "order"
	NotificationTypePoints NotificationType = "points"
	NotificationTypeSystem NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypePoints,
	NotificationTypeSystem,
}

// IsValid reports whether the value matches the canonical notification enum.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
