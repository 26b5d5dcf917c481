package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/pkgindex/pkgindex/internal/observability"
)

// MaxErrorLength bounds error strings stored in receipts.
const MaxErrorLength = 2048

// Session tracks one command from start to finish.
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option adds a section to the receipt.
type Option func(*Receipt)

func WithReconcile(added, deleted, collections int) Option {
	return func(r *Receipt) {
		r.Reconcile = &ReconcileSummary{Added: added, Deleted: deleted, Collections: collections}
	}
}

// WithCollection records a document; the file at path is hashed when present.
func WithCollection(name, path string, packages, versions int) Option {
	return func(r *Receipt) {
		c := &CollectionSummary{Name: name, Path: path, Packages: packages, Versions: versions}
		if path != "" {
			if hash, err := computeSHA256(path); err == nil {
				c.SHA256 = hash
			}
		}
		r.Collection = c
	}
}

func WithSignature(subject, issuer string, valid *bool) Option {
	return func(r *Receipt) {
		r.Signature = &SignatureSummary{Subject: subject, Issuer: issuer, Valid: valid}
	}
}

func WithPolicy(name, status string, hits []string) Option {
	return func(r *Receipt) {
		r.Policy = &PolicySummary{Name: name, Status: status, RulesHit: hits}
	}
}

func WithPublish(ref, digest string) Option {
	return func(r *Receipt) {
		r.Publish = &PublishSummary{Reference: ref, Digest: digest}
	}
}

// Finish writes the receipt if a writer is configured in the session context.
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		return nil
	}

	args, redacted := RedactArgs(s.args)
	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.UTC().Format(time.RFC3339Nano),
		TsEnd:         time.Now().UTC().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          args,
		ArgsRedacted:  redacted,
		Result:        Result{Status: "success"},
	}
	if err != nil {
		r.Result = Result{Status: "fail", Error: truncateError(err.Error())}
	}
	for _, opt := range opts {
		opt(&r)
	}
	return w.Write(r)
}

func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
