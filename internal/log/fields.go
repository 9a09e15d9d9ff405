package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldProductID     = "product_id"
	FieldSellerID      = "seller_id"
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldVersion       = "version"
)

// Standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentGateway = "gateway"
	ComponentEvents  = "events"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentCache   = "cache"
)

// Standard operation names
const (
	OpAddProduct    = "add_product"
	OpAddSeller     = "add_seller"
	OpRecordSale    = "record_sale"
	OpRecordPayment = "record_payment"
	OpLoad          = "load"
	OpSave          = "save"
	OpExport        = "export"
	OpStartup       = "startup"
	OpShutdown      = "shutdown"
)
