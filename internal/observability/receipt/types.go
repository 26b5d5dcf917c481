// Package receipt writes run receipts: one JSON record per command
// describing what it changed or produced.
package receipt

const ReceiptSchemaVersion = "1.0"

// Receipt is the record written when a command finishes.
type Receipt struct {
	SchemaVersion string             `json:"schema_version"`
	OpID          string             `json:"op_id"`
	TsStart       string             `json:"ts_start"`
	TsEnd         string             `json:"ts_end"`
	Command       string             `json:"command"`
	Args          []string           `json:"args"`
	ArgsRedacted  bool               `json:"args_redacted,omitempty"`
	Result        Result             `json:"result"`
	Reconcile     *ReconcileSummary  `json:"reconcile,omitempty"`
	Collection    *CollectionSummary `json:"collection,omitempty"`
	Signature     *SignatureSummary  `json:"signature,omitempty"`
	Policy        *PolicySummary     `json:"policy,omitempty"`
	Publish       *PublishSummary    `json:"publish,omitempty"`
}

type Result struct {
	Status string `json:"status"` // success|fail
	Error  string `json:"error,omitempty"`
}

// ReconcileSummary counts store changes made by a reconcile.
type ReconcileSummary struct {
	Added       int `json:"added"`
	Deleted     int `json:"deleted"`
	Collections int `json:"collections,omitempty"`
}

// CollectionSummary identifies a generated or signed document on disk.
type CollectionSummary struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Packages int    `json:"packages"`
	Versions int    `json:"versions"`
}

// SignatureSummary describes the signing certificate.
type SignatureSummary struct {
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`
	Valid   *bool  `json:"valid,omitempty"`
}

type PolicySummary struct {
	Name     string   `json:"name,omitempty"`
	Status   string   `json:"status"` // pass|fail
	RulesHit []string `json:"rules_hit,omitempty"`
}

type PublishSummary struct {
	Reference string `json:"reference"`
	Digest    string `json:"digest"`
}
