package core

import "github.com/edvin/vdesk/internal/model"

// backupTransitions is the complete set of legal backup status changes.
var backupTransitions = map[model.BackupStatus][]model.BackupStatus{
	model.BackupStatusCreating:  {model.BackupStatusCompleted, model.BackupStatusError},
	model.BackupStatusCompleted: {model.BackupStatusDeleted},
	model.BackupStatusError:     {model.BackupStatusDeleted},
	model.BackupStatusDeleted:   nil,
}

// IsValidTransition reports whether a backup may move from current to next.
// Unknown statuses and same-status updates are never valid.
func IsValidTransition(current, next model.BackupStatus) bool {
	for _, allowed := range backupTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}
