package domain

import "encoding/json"

// ChargeSuccessEvent is the only gateway event that moves money.
const ChargeSuccessEvent = "charge.success"

// PaymentWebhookEvent is the subset of the gateway payload this service reads.
type PaymentWebhookEvent struct {
	Event string             `json:"event"`
	Data  PaymentWebhookData `json:"data"`
}

type PaymentWebhookData struct {
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Status    string          `json:"status"`
	Customer  PaymentCustomer `json:"customer"`
	Metadata  json.RawMessage `json:"metadata"`
}

type PaymentCustomer struct {
	Email string `json:"email"`
}

// PaymentMetadata is attached at initialization and echoed back by the gateway.
type PaymentMetadata struct {
	CourseID         string `json:"courseId"`
	PaymentStructure string `json:"paymentStructure"`
	LearningMode     string `json:"learningMode"`
}

// ParseMetadata tolerates an absent, empty-string or null metadata field.
func (d PaymentWebhookData) ParseMetadata() (PaymentMetadata, error) {
	var meta PaymentMetadata
	if len(d.Metadata) == 0 || string(d.Metadata) == "null" || string(d.Metadata) == `""` {
		return meta, nil
	}
	if err := json.Unmarshal(d.Metadata, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}
