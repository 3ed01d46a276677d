package model

// BackupStatus is the lifecycle state of a backup.
type BackupStatus string

// Backup status constants.
const (
	BackupStatusCreating  BackupStatus = "CREATING"
	BackupStatusCompleted BackupStatus = "COMPLETED"
	BackupStatusError     BackupStatus = "ERROR"
	BackupStatusDeleted   BackupStatus = "DELETED"
)

// BackupStatuses lists every known backup status.
var BackupStatuses = []BackupStatus{
	BackupStatusCreating,
	BackupStatusCompleted,
	BackupStatusError,
	BackupStatusDeleted,
}

// Valid reports whether s is one of the known statuses.
func (s BackupStatus) Valid() bool {
	switch s {
	case BackupStatusCreating, BackupStatusCompleted, BackupStatusError, BackupStatusDeleted:
		return true
	}
	return false
}

// Instance status constants.
const (
	InstanceStatusRunning = "running"
	InstanceStatusStopped = "stopped"
	InstanceStatusDeleted = "deleted"
)
