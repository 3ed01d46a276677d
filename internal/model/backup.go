package model

import "time"

type Backup struct {
	ID                   string       `json:"id"`
	OwnerID              string       `json:"ownerId"`
	SourceInstanceID     *string      `json:"sourceInstanceId"`
	Name                 string       `json:"name"`
	ProviderSnapshotName string       `json:"providerSnapshotName"`
	SourceInstanceName   string       `json:"sourceInstanceName"`
	SourceInstanceZone   string       `json:"sourceInstanceZone"`
	StorageBytes         *int64       `json:"storageBytes"`
	Status               BackupStatus `json:"status"`
	ErrorMessage         *string      `json:"errorMessage"`
	Simulated            bool         `json:"simulated"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// BackupWithCost is a backup as returned to its owner, with the storage
// cost accrued so far.
type BackupWithCost struct {
	Backup
	CurrentCost float64 `json:"currentCost"`
}
