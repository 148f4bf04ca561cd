package entity

// CheckoutRequest is the per-request view of a download attempt. Resource carries the
// catalog price; nothing in it is taken from the caller except the name, token, payer id
// and return status.
type CheckoutRequest struct {
	Resource Resource
	Token    string
	PayerId  string
	Status   string
}
