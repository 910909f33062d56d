// Package session exposes one analysis session over HTTP. Views post gesture
// events and read the derived state, render attributes and exports.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vaine/docs/schema/openapi"
	"vaine/internal/blob"
	"vaine/internal/cluster"
	"vaine/internal/core"
	"vaine/internal/export"
	"vaine/internal/ledger"
	"vaine/internal/selection"
	"vaine/pkg/domain"
)

// Exporter saves and lists analysis exports.
type Exporter interface {
	Export(ctx context.Context, doc domain.AnalysisDocument, formats ...export.Format) (export.Record, error)
	List(ctx context.Context, pair domain.PairKey) ([]ledger.Entry, error)
	Open(ctx context.Context, id, file string) (blob.Info, io.ReadCloser, error)
}

// Handler routes /api/v1/session, /api/v1/exports and /api/v1/openapi.yaml.
type Handler struct {
	Session *core.Session
	Exports Exporter
	Logger  *zap.Logger
}

// NewHandler constructs a handler for s.
func NewHandler(s *core.Session, exports Exporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Session: s, Exports: exports, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Session == nil {
		writeError(w, http.StatusInternalServerError, "session not configured")
		return
	}
	ctx := core.WithSessionID(r.Context(), h.Session.ID())
	r = r.WithContext(ctx)

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/session":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, newStateView(h.Session))
	case path == "/api/v1/session/gestures":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.handleGesture(w, r)
	case path == "/api/v1/session/points":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"points": h.Session.RenderPoints()})
	case path == "/api/v1/session/exclusions":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleExclusions(w)
	case path == "/api/v1/session/document":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, h.Session.ExportDocument())
	case strings.HasPrefix(path, "/api/v1/session/clusters/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleCluster(w, strings.TrimPrefix(path, "/api/v1/session/clusters/"))
	case path == "/api/v1/openapi.yaml":
		if !allow(w, r, http.MethodGet) {
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openapi.Spec())
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

// Gesture is one user event. Type selects the operation; the remaining
// fields are read as that operation needs them.
type Gesture struct {
	Type      string           `json:"type"`
	N         int              `json:"n,omitempty"`
	Alpha     float64          `json:"alpha,omitempty"`
	Key       string           `json:"key,omitempty"`
	Plot      string           `json:"plot,omitempty"`
	Indices   []int            `json:"indices,omitempty"`
	Union     bool             `json:"union,omitempty"`
	Cluster   domain.ClusterID `json:"cluster,omitempty"`
	Valid     bool             `json:"valid,omitempty"`
	Value     string           `json:"value,omitempty"`
	Treatment string           `json:"treatment,omitempty"`
	Outcome   string           `json:"outcome,omitempty"`
	Index     int              `json:"index,omitempty"`
}

var errUnknownGesture = errors.New("unknown gesture type")

// Apply dispatches g to the session.
func Apply(ctx context.Context, s *core.Session, g Gesture) error {
	switch g.Type {
	case "set_cluster_count":
		return s.SetClusterCount(ctx, g.N)
	case "set_threshold":
		return s.SetThreshold(ctx, g.Alpha)
	case "select_treatment":
		return s.SelectTreatment(ctx, g.Key)
	case "select_outcome":
		return s.SelectOutcome(ctx, g.Key)
	case "set_plot_deselection":
		return s.SetPlotDeselection(ctx, selection.PlotID(g.Plot), g.Indices, g.Union)
	case "clear_plot":
		return s.ClearPlot(ctx, selection.PlotID(g.Plot))
	case "set_cluster_valid":
		return s.SetClusterValid(ctx, g.Cluster, g.Valid)
	case "exclude_selection":
		return s.ExcludeSelection(ctx)
	case "exclude":
		return s.Exclude(ctx, g.Indices...)
	case "include":
		return s.Include(ctx, domain.NewPairKey(g.Treatment, g.Outcome), g.Index)
	case "set_cluster_color":
		return s.SetClusterColor(ctx, g.Cluster, g.Value)
	case "set_cluster_name":
		return s.SetClusterName(ctx, g.Cluster, g.Value)
	default:
		return fmt.Errorf("%w: %q", errUnknownGesture, g.Type)
	}
}

func (h *Handler) handleGesture(w http.ResponseWriter, r *http.Request) {
	var g Gesture
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid gesture: %v", err))
		return
	}
	if err := Apply(r.Context(), h.Session, g); err != nil {
		h.Logger.Debug("gesture failed", zap.String("type", g.Type), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateView(h.Session))
}

func (h *Handler) handleCluster(w http.ResponseWriter, raw string) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cluster id must be an integer")
		return
	}
	detail, ok := h.Session.ClusterDetail(domain.ClusterID(id))
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type exclusionView struct {
	Treatment    string               `json:"treatment"`
	Outcome      string               `json:"outcome"`
	Observations []domain.Observation `json:"observations"`
}

func (h *Handler) handleExclusions(w http.ResponseWriter) {
	all := h.Session.Snapshot().AllExclusions()
	out := make([]exclusionView, 0, len(all))
	for pair, obs := range all {
		out = append(out, exclusionView{Treatment: pair.Treatment, Outcome: pair.Outcome, Observations: obs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Treatment != out[j].Treatment {
			return out[i].Treatment < out[j].Treatment
		}
		return out[i].Outcome < out[j].Outcome
	})
	writeJSON(w, http.StatusOK, map[string]any{"exclusions": out})
}

type exportRequest struct {
	Formats []string `json:"formats"`
}

type entryView struct {
	ID           string        `json:"id"`
	Treatment    string        `json:"treatment"`
	Outcome      string        `json:"outcome"`
	ClusterCount int           `json:"clusters"`
	Threshold    float64       `json:"alpha"`
	ATESelected  domain.Number `json:"ATE(selected clusters)"`
	ATENone      domain.Number `json:"ATE(no clusters)"`
	ATEAll       domain.Number `json:"ATE(all clusters)"`
	Artifacts    []string      `json:"artifacts"`
	CreatedAt    time.Time     `json:"created_at"`
}

func newEntryView(e ledger.Entry) entryView {
	return entryView{
		ID: e.ID, Treatment: e.Treatment, Outcome: e.Outcome,
		ClusterCount: e.ClusterCount, Threshold: e.Threshold,
		ATESelected: domain.Number(e.ATESelected),
		ATENone:     domain.Number(e.ATENone),
		ATEAll:      domain.Number(e.ATEAll),
		Artifacts:   e.Artifacts,
		CreatedAt:   e.CreatedAt,
	}
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		switch r.Method {
		case http.MethodPost:
			h.handleExportCreate(w, r)
		case http.MethodGet:
			h.handleExportList(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	if !allow(w, r, http.MethodGet) {
		return
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/exports/"), "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		writeError(w, http.StatusNotFound, "export artifact not found")
		return
	}
	info, body, err := h.Exports.Open(r.Context(), segments[0], segments[1])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer func() { _ = body.Close() }()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", segments[1]))
	if info.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(info.ETag))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("artifact download interrupted", zap.String("export", segments[0]), zap.Error(err))
	}
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid export request: %v", err))
			return
		}
	}
	formats := make([]export.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := export.ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	rec, err := h.Exports.Export(r.Context(), h.Session.ExportDocument(), formats...)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"export": rec, "entry": newEntryView(rec.Entry)})
}

func (h *Handler) handleExportList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pair := domain.NewPairKey(q.Get("treatment"), q.Get("outcome"))
	if (pair.Treatment == "") != (pair.Outcome == "") {
		writeError(w, http.StatusBadRequest, "treatment and outcome must be given together")
		return
	}
	entries, err := h.Exports.List(r.Context(), pair)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	out := make([]entryView, len(entries))
	for i, e := range entries {
		out[i] = newEntryView(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": out})
}

type regressionView struct {
	ID         domain.ClusterID         `json:"id"`
	Name       string                   `json:"name"`
	Color      string                   `json:"color"`
	Valid      bool                     `json:"valid"`
	Overridden bool                     `json:"overridden"`
	Regression domain.ClusterRegression `json:"regression"`
}

type stateView struct {
	Session     string           `json:"session"`
	Version     uint64           `json:"version"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Treatment   string           `json:"treatment"`
	Outcome     string           `json:"outcome"`
	Clusters    int              `json:"clusters"`
	Alpha       float64          `json:"alpha"`
	Regressions []regressionView `json:"regressions"`
	Deselected  []int            `json:"deselected"`
	ATEAll      domain.Number    `json:"ate_all"`
	ATESelected domain.Number    `json:"ate_selected"`
}

func newStateView(s *core.Session) stateView {
	st := s.Snapshot()
	valid := st.ValidClusters()
	ids := st.ClusterIDs()
	regs := make([]regressionView, 0, len(ids))
	for _, id := range ids {
		reg, _ := st.Regression(id)
		regs = append(regs, regressionView{
			ID:         id,
			Name:       st.NameOf(id),
			Color:      st.ColorOf(id),
			Valid:      valid[id],
			Overridden: st.Overridden(id),
			Regression: reg,
		})
	}
	deselected := st.Deselected()
	if deselected == nil {
		deselected = []int{}
	}
	return stateView{
		Session:     s.ID(),
		Version:     st.Version(),
		UpdatedAt:   st.UpdatedAt(),
		Treatment:   st.Pair().Treatment,
		Outcome:     st.Pair().Outcome,
		Clusters:    st.ClusterCount(),
		Alpha:       st.Threshold(),
		Regressions: regs,
		Deselected:  deselected,
		ATEAll:      domain.Number(st.ATE()),
		ATESelected: domain.Number(st.SelectedATE()),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownTreatment),
		errors.Is(err, core.ErrUnknownOutcome),
		errors.Is(err, core.ErrUnknownCluster),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidThreshold),
		errors.Is(err, cluster.ErrClusterCount),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, errUnknownGesture):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicate), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
