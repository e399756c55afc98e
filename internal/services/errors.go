package services

import (
	"errors"
	"fmt"
	"net/http"
)

// OrderErrorInfo describes a domain failure of the order core and the HTTP
// status it maps to.
type OrderErrorInfo struct {
	Name   string
	Status int
}

var (
	ErrorNotFound              = OrderErrorInfo{Name: "NotFound", Status: http.StatusNotFound}
	ErrorValidation            = OrderErrorInfo{Name: "ValidationError", Status: http.StatusBadRequest}
	ErrorInsufficientStock     = OrderErrorInfo{Name: "InsufficientStock", Status: http.StatusBadRequest}
	ErrorInvalidCoupon         = OrderErrorInfo{Name: "InvalidCoupon", Status: http.StatusBadRequest}
	ErrorCouponExhausted       = OrderErrorInfo{Name: "CouponExhausted", Status: http.StatusBadRequest}
	ErrorMinimumNotMet         = OrderErrorInfo{Name: "MinimumNotMet", Status: http.StatusBadRequest}
	ErrorUnauthorized          = OrderErrorInfo{Name: "Unauthorized", Status: http.StatusUnauthorized}
	ErrorInvalidState          = OrderErrorInfo{Name: "InvalidState", Status: http.StatusBadRequest}
	ErrorInvalidDeliveryPerson = OrderErrorInfo{Name: "InvalidDeliveryPerson", Status: http.StatusBadRequest}
	ErrorInvalidTransition     = OrderErrorInfo{Name: "InvalidTransition", Status: http.StatusBadRequest}
)

// OrderError is a structured order-core error.
type OrderError struct {
	Info    OrderErrorInfo
	Message string
}

func (e *OrderError) Error() string {
	if e.Message == "" {
		return e.Info.Name
	}
	return e.Message
}

func newOrderError(info OrderErrorInfo, format string, args ...any) *OrderError {
	return &OrderError{Info: info, Message: fmt.Sprintf(format, args...)}
}

// HasErrorInfo reports whether err is an OrderError of the given kind.
func HasErrorInfo(err error, info OrderErrorInfo) bool {
	var oe *OrderError
	return errors.As(err, &oe) && oe.Info == info
}

// ErrorName returns the catalogue name of err, or "Internal".
func ErrorName(err error) string {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Info.Name
	}
	return "Internal"
}
