package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldRowCount    = "row_count"
	FieldDropped     = "dropped"
	FieldCategory    = "category"
	FieldGoal        = "goal"
	FieldAmountCents = "amount_cents"
	FieldTrigger     = "trigger"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentImport  = "import"
	ComponentMapping = "mapping"
	ComponentLedger  = "ledger"
	ComponentMetrics = "metrics"
	ComponentCluster = "cluster"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)

// Operations defines standard operation names
const (
	OpImport     = "import"
	OpMap        = "map"
	OpNormalize  = "normalize"
	OpReclassify = "reclassify"
	OpAppend     = "append"
	OpExport     = "export"
	OpSync       = "sync"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
