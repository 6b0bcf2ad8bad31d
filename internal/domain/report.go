package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportStatus is the outcome carried by an ExecutionReport.
type ReportStatus string

const (
	StatusOrderAccept  ReportStatus = "ORDER_ACCEPT"
	StatusOrderReject  ReportStatus = "ORDER_REJECT"
	StatusFill         ReportStatus = "FILL"
	StatusCanceled     ReportStatus = "CANCELED"
	StatusCancelReject ReportStatus = "CANCEL_REJECT"
)

// ExecutionReport is the venue's answer to every order state change:
// accept, reject, fill, cancel, and cancel-reject. It is a value, produced
// once and either returned on the triggering session's stream or routed
// through the notification registry to the stream that owns the order.
// OrderID is 0 for rejections that never got an id assigned.
type ExecutionReport struct {
	Status       ReportStatus    `json:"status"`
	ClientID     uint64          `json:"client_id"`
	OrderID      uint64          `json:"order_id"`
	InstrumentID string          `json:"instrument_id"`
	OrderQty     int64           `json:"order_qty"`
	OrderPrice   decimal.Decimal `json:"order_price"`
	FillQty      int64           `json:"fill_qty"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	LeaveQty     int64           `json:"leave_qty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Time         string          `json:"time"`
}

// RejectReport builds the default ORDER_REJECT answer for a new-order
// request. Callers upgrade it to ORDER_ACCEPT once an id is assigned.
func RejectReport(req *NewOrderRequest) ExecutionReport {
	return ExecutionReport{
		Status:       StatusOrderReject,
		ClientID:     req.ClientID,
		InstrumentID: req.InstrumentID,
		OrderQty:     req.Qty,
		OrderPrice:   req.Price,
		LeaveQty:     req.Qty,
	}
}

// CancelRejectReport builds the default CANCEL_REJECT answer for a cancel
// request. Callers upgrade it to CANCELED on success.
func CancelRejectReport(req *CancelOrderRequest) ExecutionReport {
	return ExecutionReport{
		Status:  StatusCancelReject,
		OrderID: req.OrderID,
	}
}

// OrderReport is one element of a query-order snapshot stream.
type OrderReport struct {
	OrderID      uint64          `json:"order_id"`
	ClientID     uint64          `json:"client_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Kind         Kind            `json:"kind"`
	Qty          int64           `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	Time         string          `json:"time"`
}

// OrderReportOf snapshots a resting order into a query report.
func OrderReportOf(o Order) OrderReport {
	return OrderReport{
		OrderID:      o.OrderID,
		ClientID:     o.ClientID,
		InstrumentID: o.InstrumentID,
		Side:         o.Side,
		Kind:         o.Kind,
		Qty:          o.RemainingQty,
		Price:        o.Price,
		Time:         o.SubmittedAt.Format(time.RFC3339),
	}
}

// Now returns the report timestamp in the venue's wall-clock format.
func Now() string {
	return time.Now().Format(time.RFC3339Nano)
}

// Stamp returns the current time in monotonic-ish milliseconds since the
// Unix epoch, used by the simulated-fill scheduler's dwell arithmetic.
func Stamp() int64 {
	return time.Now().UnixMilli()
}
