package entity

// Express Checkout API methods.
const (
	MethodSetExpressCheckout        = "SetExpressCheckout"
	MethodGetExpressCheckoutDetails = "GetExpressCheckoutDetails"
	MethodDoExpressCheckoutPayment  = "DoExpressCheckoutPayment"
)

// Request fields sent with every call.
const (
	FieldUser      = "USER"
	FieldPassword  = "PWD"
	FieldSignature = "SIGNATURE"
	FieldVersion   = "VERSION"
	FieldMethod    = "METHOD"
)

// Payment request fields. PAYMENTACTION "Sale" captures the funds on DoExpressCheckoutPayment;
// ITEMCATEGORY0 "Digital" marks a digital good with no shipping.
const (
	FieldToken         = "TOKEN"
	FieldPayerId       = "PAYERID"
	FieldReturnUrl     = "RETURNURL"
	FieldCancelUrl     = "CANCELURL"
	FieldAmount        = "PAYMENTREQUEST_0_AMT"
	FieldItemAmount    = "PAYMENTREQUEST_0_ITEMAMT"
	FieldCurrency      = "PAYMENTREQUEST_0_CURRENCYCODE"
	FieldPaymentAction = "PAYMENTREQUEST_0_PAYMENTACTION"
	FieldItemName      = "L_PAYMENTREQUEST_0_NAME0"
	FieldItemAmt       = "L_PAYMENTREQUEST_0_AMT0"
	FieldItemQty       = "L_PAYMENTREQUEST_0_QTY0"
	FieldItemCategory  = "L_PAYMENTREQUEST_0_ITEMCATEGORY0"
	FieldConfirmShip   = "REQCONFIRMSHIPPING"
	FieldNoShipping    = "NOSHIPPING"
)

// Response fields.
const (
	FieldAck            = "ACK"
	FieldCorrelationId  = "CORRELATIONID"
	FieldErrorCode      = "L_ERRORCODE0"
	FieldShortMessage   = "L_SHORTMESSAGE0"
	FieldLongMessage    = "L_LONGMESSAGE0"
	FieldCheckoutStatus = "CHECKOUTSTATUS"
	FieldTransactionId  = "PAYMENTINFO_0_TRANSACTIONID"
	FieldPaymentStatus  = "PAYMENTINFO_0_PAYMENTSTATUS"
)

const AckSuccess = "Success"

// Checkout statuses reported by GetExpressCheckoutDetails.
const (
	StatusNotInitiated    = "PaymentActionNotInitiated"
	StatusInProgress      = "PaymentActionInProgress"
	StatusFailed          = "PaymentActionFailed"
	StatusActionCompleted = "PaymentActionCompleted"
	StatusCompleted       = "PaymentCompleted"
)

// CheckoutDetails is the result of GetExpressCheckoutDetails.
type CheckoutDetails struct {
	Token    string
	Status   string
	PayerId  string
	Amount   string
	Currency string
}
