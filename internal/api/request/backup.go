package request

// CreateBackup is the body of POST /backups. The name is checked by the
// backup service so that blank names get a specific message.
type CreateBackup struct {
	InstanceID string `json:"instanceId" validate:"required"`
	Name       string `json:"name"`
}

// Login is the body of POST /auth/login.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
