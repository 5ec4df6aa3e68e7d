package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants shared by queue producers and consumers.
const (
	TypeIssueCertificate = "certificate:issue"
)

// IssueCertificatePayload describes one automatic issuance for a single
// recipient. Batch endpoints enqueue one task per recipient so a failure
// retries alone.
type IssueCertificatePayload struct {
	TemplateID    uint   `json:"template_id"`
	Email         string `json:"email,omitempty"`
	ExternalID    string `json:"external_id,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"` // RFC 3339
	CorrelationID string `json:"correlation_id"`
}

// NewIssueCertificateTask builds an automatic issuance task.
func NewIssueCertificateTask(payload IssueCertificatePayload) (*asynq.Task, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIssueCertificate, encoded), nil
}
