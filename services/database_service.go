package services

import (
	"context"
	"paygate/entity"
)

// Database is the operational sink for log records and checkout audit events.
// It is write-only from the gate's point of view; decisions never read from it.
type Database interface {
	WriteLogMessage(data Data) error
	SaveCheckoutEvent(ctx context.Context, event *entity.CheckoutEvent) error
}

type Data interface {
	DataType() string
}
