package workflow

import (
	"fmt"
	"time"

	"github.com/munderdifflin/paperledger/internal/orders"
)

// RequestType enumerates supported customer request kinds.
type RequestType string

const (
	// RequestTypeQuote asks for a price estimate only.
	RequestTypeQuote RequestType = "quote"
	// RequestTypeOrder asks to purchase; records sales and may restock.
	RequestTypeOrder RequestType = "order"
	// RequestTypeInquiry asks about availability.
	RequestTypeInquiry RequestType = "inquiry"
)

// Request is one resolved customer request. The natural-language layer
// that produced it is an external collaborator. RequestID, when set,
// seeds the idempotency keys for recorded movements; a retry under the
// same ID cannot book the same line twice.
type Request struct {
	RequestID string
	Type      RequestType
	Lines     []RequestLine
	Date      time.Time
}

// RequestLine names one item and quantity.
type RequestLine struct {
	Item     string
	Quantity int
}

// Status summarises the request outcome.
type Status string

const (
	StatusFulfilled Status = "fulfilled"
	StatusPartial   Status = "partial"
	StatusRejected  Status = "rejected"
)

// LineStatus is the per-line outcome.
type LineStatus string

const (
	LineFulfilled LineStatus = "fulfilled"
	LineRejected  LineStatus = "rejected"
)

// LineResult reports one request line's outcome.
type LineResult struct {
	RequestedName string     `json:"requested_name"`
	ItemName      string     `json:"item_name,omitempty"`
	Quantity      int        `json:"quantity"`
	Stock         int        `json:"stock,omitempty"`
	UnitPrice     float64    `json:"unit_price,omitempty"`
	LineTotal     float64    `json:"line_total,omitempty"`
	TransactionID int64      `json:"transaction_id,omitempty"`
	Status        LineStatus `json:"status"`
	Reason        string     `json:"reason,omitempty"`
}

// RestockNote reports a post-sale restock evaluation for one item.
type RestockNote struct {
	ItemName     string  `json:"item_name"`
	Needed       bool    `json:"needed"`
	Approved     bool    `json:"approved"`
	Quantity     int     `json:"quantity,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	DeliveryDate string  `json:"delivery_date,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Response is the structured answer returned for every request. Domain
// failures surface here as statuses and reasons, never as errors.
type Response struct {
	RequestID        string                   `json:"request_id"`
	Status           Status                   `json:"status"`
	Lines            []LineResult             `json:"lines"`
	Subtotal         float64                  `json:"subtotal,omitempty"`
	DiscountPercent  float64                  `json:"discount_percent,omitempty"`
	DiscountAmount   float64                  `json:"discount_amount,omitempty"`
	Total            float64                  `json:"total,omitempty"`
	TotalFormatted   string                   `json:"total_formatted,omitempty"`
	DeliveryEstimate *orders.DeliveryEstimate `json:"delivery_estimate,omitempty"`
	Restocks         []RestockNote            `json:"restocks,omitempty"`
	FailureReason    string                   `json:"failure_reason,omitempty"`
	Trace            []State                  `json:"-"`
}

// State is a step in the fixed per-request pipeline.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateItemsResolved    State = "ITEMS_RESOLVED"
	StatePriced           State = "PRICED"
	StateTransacted       State = "TRANSACTED"
	StateRestockEvaluated State = "RESTOCK_EVALUATED"
	StateRestockApproved  State = "RESTOCK_APPROVED"
	StateRestockDeclined  State = "RESTOCK_DECLINED"
	StateResponded        State = "RESPONDED"
)

// transitions fixes the legal pipeline order. Quote requests terminate
// after PRICED; orders continue through TRANSACTED and the restock
// evaluation; resolution failures short-circuit to RESPONDED.
var transitions = map[State][]State{
	StateReceived:         {StateItemsResolved},
	StateItemsResolved:    {StatePriced, StateResponded},
	StatePriced:           {StateTransacted, StateResponded},
	StateTransacted:       {StateRestockEvaluated, StateResponded},
	StateRestockEvaluated: {StateRestockApproved, StateRestockDeclined, StateResponded},
	StateRestockApproved:  {StateResponded},
	StateRestockDeclined:  {StateResponded},
}

type machine struct {
	state State
	trace []State
}

func newMachine() *machine {
	return &machine{state: StateReceived, trace: []State{StateReceived}}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.trace = append(m.trace, next)
			return nil
		}
	}
	return fmt.Errorf("workflow: illegal transition %s -> %s", m.state, next)
}
