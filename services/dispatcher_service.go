package services

import (
	"net/http"
	"paygate/entity"
)

// Dispatcher delivers a paid resource to the client.
type Dispatcher interface {
	Dispatch(w http.ResponseWriter, r *http.Request, resource entity.Resource) error
}
