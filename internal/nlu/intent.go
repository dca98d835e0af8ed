// Package nlu turns customer text into intents, booking slots and product
// queries, and writes free-form replies, on top of an llm.Provider.
package nlu

import "strings"

// Intent is the closed set of things a customer message can ask for.
type Intent int

const (
	IntentOther Intent = iota
	IntentStockQuery
	IntentPriceQuery
	IntentPurchase
	IntentFinancingQuery
	IntentPaymentLinkRequest
	IntentTransferDataRequest
	IntentPaymentConfirmation
	IntentAppointmentRequest
	IntentAppointmentModify
	IntentAppointmentCancel
	IntentAppointmentQuery
	IntentRefundRequest
	IntentExchangeRequest
	IntentDefectReport
	IntentComplaint
	IntentComplaintDelay
	IntentComplaintService
	IntentTechnicalSupport
	IntentWarrantyQuery
	IntentHoursQuery
	IntentShippingQuery
	IntentGreeting
	IntentFarewell

	// IntentCount is the number of intents; keep it last.
	IntentCount
)

var intentLabels = [IntentCount]string{
	IntentOther:               "other",
	IntentStockQuery:          "stock_query",
	IntentPriceQuery:          "price_query",
	IntentPurchase:            "purchase_intent",
	IntentFinancingQuery:      "financing_query",
	IntentPaymentLinkRequest:  "payment_link_request",
	IntentTransferDataRequest: "transfer_data_request",
	IntentPaymentConfirmation: "payment_confirmation",
	IntentAppointmentRequest:  "appointment_request",
	IntentAppointmentModify:   "appointment_modify",
	IntentAppointmentCancel:   "appointment_cancel",
	IntentAppointmentQuery:    "appointment_query",
	IntentRefundRequest:       "refund_request",
	IntentExchangeRequest:     "exchange_request",
	IntentDefectReport:        "defect_report",
	IntentComplaint:           "complaint",
	IntentComplaintDelay:      "complaint_delay",
	IntentComplaintService:    "complaint_service",
	IntentTechnicalSupport:    "technical_support",
	IntentWarrantyQuery:       "warranty_query",
	IntentHoursQuery:          "hours_query",
	IntentShippingQuery:       "shipping_query",
	IntentGreeting:            "greeting",
	IntentFarewell:            "farewell",
}

// String returns the wire label of the intent.
func (i Intent) String() string {
	if i < 0 || i >= IntentCount {
		return intentLabels[IntentOther]
	}
	return intentLabels[i]
}

// ParseIntent maps a label to its Intent. Unknown labels map to IntentOther.
func ParseIntent(label string) Intent {
	label = strings.ToLower(strings.TrimSpace(label))
	for i, l := range intentLabels {
		if l == label {
			return Intent(i)
		}
	}
	return IntentOther
}

// Labels lists every intent label in enum order.
func Labels() []string {
	return append([]string(nil), intentLabels[:]...)
}
