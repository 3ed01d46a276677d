package model

import "time"

type Instance struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"ownerId"`
	Name               string     `json:"name"`
	Zone               string     `json:"zone"`
	ProviderInstanceID *string    `json:"providerInstanceId"`
	DiskSizeGB         int        `json:"diskSizeGb"`
	HourlyRate         float64    `json:"hourlyRate"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"createdAt"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
}

// InstanceCost is the compute cost accrued by a single instance.
type InstanceCost struct {
	InstanceID string  `json:"instanceId"`
	Name       string  `json:"name"`
	Hours      float64 `json:"hours"`
	Cost       float64 `json:"cost"`
}
