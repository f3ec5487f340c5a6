package enums

import "fmt"

// ErpSyncStatus is the retry ledger state for external ERP synchronization.
type ErpSyncStatus string

const (
	ErpSyncStatusPending ErpSyncStatus = "pending"
	ErpSyncStatusSynced  ErpSyncStatus = "synced"
	ErpSyncStatusFailed  ErpSyncStatus = "failed"
)

var validErpSyncStatuses = []ErpSyncStatus{
	ErpSyncStatusPending,
	ErpSyncStatusSynced,
	ErpSyncStatusFailed,
}

// IsValid reports whether the value is a known ErpSyncStatus.
func (e ErpSyncStatus) IsValid() bool {
	for _, candidate := range validErpSyncStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseErpSyncStatus converts raw input into an ErpSyncStatus.
func ParseErpSyncStatus(value string) (ErpSyncStatus, error) {
	for _, candidate := range validErpSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid erp sync status %q", value)
}
