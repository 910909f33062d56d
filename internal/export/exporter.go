// Package export saves analysis documents as artifacts in a blob store and
// indexes each save in the export ledger.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaine/internal/blob"
	"vaine/internal/core"
	"vaine/internal/ledger"
	"vaine/pkg/domain"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for a format the exporter cannot render.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat maps a user supplied name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Status describes the outcome of an export attempt.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact is one stored file of an export.
type Artifact struct {
	Format      Format `json:"format"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ETag        string `json:"etag,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Record describes a completed export.
type Record struct {
	ID        string          `json:"id"`
	Pair      domain.PairKey  `json:"pair"`
	Artifacts []Artifact      `json:"artifacts"`
	Entry     ledger.Entry    `json:"-"`
	Document  json.RawMessage `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Export     string         `json:"export"`
	Session    string         `json:"session,omitempty"`
	Pair       domain.PairKey `json:"pair"`
	Status     Status         `json:"status"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Exporter renders documents, stores the artifacts and appends ledger entries.
type Exporter struct {
	store   blob.Store
	ledger  ledger.Ledger
	audit   AuditLogger
	logger  *zap.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
	newID   func() string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithAudit sets the audit sink.
func WithAudit(a AuditLogger) Option { return func(e *Exporter) { e.audit = a } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records one "export" observation per call.
func WithMetrics(m core.MetricsRecorder) Option {
	return func(e *Exporter) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Exporter) { e.now = now } }

// WithIDGenerator overrides export id generation.
func WithIDGenerator(fn func() string) Option { return func(e *Exporter) { e.newID = fn } }

// NewExporter constructs an exporter over store and led.
func NewExporter(store blob.Store, led ledger.Ledger, opts ...Option) *Exporter {
	e := &Exporter{
		store:   store,
		ledger:  led,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export saves doc in the requested formats (JSON when none are given).
// Artifacts already stored are removed again when a later step fails.
func (e *Exporter) Export(ctx context.Context, doc domain.AnalysisDocument, formats ...Format) (rec Record, err error) {
	start := e.now()
	defer func() { e.metrics.Observe(ctx, "export", err == nil, e.now().Sub(start)) }()

	formats, err = uniqueFormats(formats)
	if err != nil {
		return Record{}, err
	}
	id := e.newID()
	rec = Record{ID: id, Pair: doc.Pair(), CreatedAt: start}

	var stored []string
	cleanup := func() {
		for _, key := range stored {
			if _, derr := e.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
				e.logger.Warn("artifact cleanup failed", zap.String("key", key), zap.Error(derr))
			}
		}
	}
	for _, format := range formats {
		payload, contentType, rerr := render(format, doc)
		if rerr != nil {
			e.fail(ctx, rec, rerr)
			cleanup()
			return Record{}, rerr
		}
		if format == FormatJSON {
			rec.Document = payload
		}
		key := blob.ArtifactKey(id, fileName(doc, format))
		info, perr := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata: map[string]string{
				"export":    id,
				"treatment": doc.Treatment,
				"outcome":   doc.Outcome,
				"format":    string(format),
			},
		})
		if perr != nil {
			perr = fmt.Errorf("store %s artifact: %w", format, perr)
			e.fail(ctx, rec, perr)
			cleanup()
			return Record{}, perr
		}
		stored = append(stored, info.Key)
		rec.Artifacts = append(rec.Artifacts, Artifact{
			Format:      format,
			Key:         info.Key,
			ContentType: contentType,
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			URL:         e.url(ctx, info),
		})
	}

	rec.Entry = ledger.Entry{
		ID:           id,
		Treatment:    doc.Treatment,
		Outcome:      doc.Outcome,
		ClusterCount: doc.ClusterCount,
		Threshold:    doc.Threshold,
		ATESelected:  float64(doc.ATESelected),
		ATENone:      float64(doc.ATENone),
		ATEAll:       float64(doc.ATEAll),
		Artifacts:    stored,
		CreatedAt:    start,
	}
	if lerr := e.ledger.Append(ctx, rec.Entry); lerr != nil {
		lerr = fmt.Errorf("record export: %w", lerr)
		e.fail(ctx, rec, lerr)
		cleanup()
		return Record{}, lerr
	}

	e.record(ctx, rec, StatusSucceeded, map[string]any{"artifacts": len(stored)})
	e.logger.Info("analysis exported",
		zap.String("export", id),
		zap.String("pair", rec.Pair.String()),
		zap.Int("clusters", doc.ClusterCount),
		zap.Strings("artifacts", stored),
	)
	return rec, nil
}

// List returns the ledger entries of pair; a zero pair lists all exports.
func (e *Exporter) List(ctx context.Context, pair domain.PairKey) ([]ledger.Entry, error) {
	return e.ledger.List(ctx, pair)
}

// Open returns one stored artifact of export id.
func (e *Exporter) Open(ctx context.Context, id, file string) (blob.Info, io.ReadCloser, error) {
	if _, err := e.ledger.Get(ctx, id); err != nil {
		return blob.Info{}, nil, err
	}
	return e.store.Get(ctx, blob.ArtifactKey(id, file))
}

func (e *Exporter) url(ctx context.Context, info blob.Info) string {
	if info.URL != "" {
		return info.URL
	}
	u, err := e.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Method: "GET"})
	if err != nil {
		if !errors.Is(err, blob.ErrUnsupported) {
			e.logger.Debug("presign failed", zap.String("key", info.Key), zap.Error(err))
		}
		return ""
	}
	return u
}

func (e *Exporter) fail(ctx context.Context, rec Record, err error) {
	e.logger.Warn("export failed", zap.String("export", rec.ID), zap.String("pair", rec.Pair.String()), zap.Error(err))
	e.record(ctx, rec, StatusFailed, map[string]any{"error": err.Error()})
}

func (e *Exporter) record(ctx context.Context, rec Record, status Status, meta map[string]any) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "analysis_export",
		Export:     rec.ID,
		Session:    core.SessionIDFromContext(ctx),
		Pair:       rec.Pair,
		Status:     status,
		Metadata:   meta,
		OccurredAt: e.now(),
	})
}

func uniqueFormats(formats []Format) ([]Format, error) {
	if len(formats) == 0 {
		return []Format{FormatJSON}, nil
	}
	out := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if f != FormatJSON && f != FormatCSV {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// FileName is the artifact name of doc in format: treatment and outcome
// keys joined, with path separators replaced.
func FileName(doc domain.AnalysisDocument, format Format) string { return fileName(doc, format) }

func fileName(doc domain.AnalysisDocument, format Format) string {
	base := strings.NewReplacer("..", "_", "/", "_", "\\", "_").Replace(strings.Trim(doc.Treatment+doc.Outcome, "."))
	if base == "" {
		base = "analysis"
	}
	return base + "." + string(format)
}

func render(format Format, doc domain.AnalysisDocument) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		payload, err := renderCSV(doc)
		if err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		return payload, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var csvHeader = []string{"name", "customName", "status", "included", "excluded", "rvalue", "pvalue", "slope", "intercept"}

func renderCSV(doc domain.AnalysisDocument) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, c := range doc.Clusters {
		row := []string{
			c.Name,
			c.CustomName,
			string(c.Status),
			strconv.Itoa(len(c.Included)),
			strconv.Itoa(len(c.Excluded)),
			formatNumber(c.RValue),
			formatNumber(c.PValue),
			formatNumber(c.Slope),
			formatNumber(c.Intercept),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// formatNumber leaves undefined values empty.
func formatNumber(n domain.Number) string {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// MemoryAuditLog keeps audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record implements AuditLogger.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}

// ZapAuditLog writes audit entries to a logger at Info.
type ZapAuditLog struct {
	Logger *zap.Logger
}

// Record implements AuditLogger.
func (l ZapAuditLog) Record(_ context.Context, entry AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("audit",
		zap.String("audit_id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("export", entry.Export),
		zap.String("session", entry.Session),
		zap.String("pair", entry.Pair.String()),
		zap.String("status", string(entry.Status)),
		zap.Any("metadata", entry.Metadata),
		zap.Time("occurred_at", entry.OccurredAt),
	)
}
