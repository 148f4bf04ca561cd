package entity

import "time"

// CheckoutEvent is the audit record written for every decision the gate makes.
// The token is stored only as a fingerprint.
type CheckoutEvent struct {
	RequestId        string    `json:"request_id" bson:"request_id"`
	Resource         string    `json:"resource" bson:"resource"`
	State            string    `json:"state" bson:"state"`
	Outcome          string    `json:"outcome" bson:"outcome"`
	Status           int       `json:"status" bson:"status"`
	TokenFingerprint string    `json:"token_fingerprint,omitempty" bson:"token_fingerprint,omitempty"`
	TransactionId    string    `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Error            string    `json:"error,omitempty" bson:"error,omitempty"`
	Time             time.Time `json:"time" bson:"time"`
}

func (e *CheckoutEvent) DataType() string {
	return "checkout_event"
}
