package model

// CostSummary combines instance compute costs with backup storage costs for
// one owner. TotalCost is always InstanceCost + BackupStorageCost.
type CostSummary struct {
	InstanceCount     int     `json:"instanceCount"`
	InstanceCost      float64 `json:"instanceCost"`
	BackupCount       int     `json:"backupCount"`
	BackupStorageGB   float64 `json:"backupStorageGb"`
	BackupStorageCost float64 `json:"backupStorageCost"`
	TotalCost         float64 `json:"totalCost"`
}
