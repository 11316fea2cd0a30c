package gateway

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasinmuhammed/matrix-admin/internal/audit"
	"github.com/rasinmuhammed/matrix-admin/internal/config"
	"github.com/rasinmuhammed/matrix-admin/internal/crud"
	"github.com/rasinmuhammed/matrix-admin/internal/observability"
	"github.com/rasinmuhammed/matrix-admin/internal/registry"
	"github.com/rasinmuhammed/matrix-admin/internal/token"
	"github.com/rasinmuhammed/matrix-admin/model"
)

// exportChunkSize is how many rows a CSV export fetches per round trip.
const exportChunkSize = 500

// Handlers holds the dependencies shared by every admin route.
type Handlers struct {
	cfg      *config.Config
	registry *registry.Registry
	engine   *crud.Engine
	signer   *token.Signer
	replay   token.ReplayGuard
	auditor  *audit.Logger
	metrics  *observability.Metrics
	log      *zap.Logger
}

// NewHandlers wires the handler set. replay may be nil when single-use
// tokens are disabled; auditor and metrics may be nil.
func NewHandlers(cfg *config.Config, reg *registry.Registry, engine *crud.Engine, signer *token.Signer, replay token.ReplayGuard, auditor *audit.Logger, metrics *observability.Metrics, log *zap.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		registry: reg,
		engine:   engine,
		signer:   signer,
		replay:   replay,
		auditor:  auditor,
		metrics:  metrics,
		log:      log,
	}
}

func (h *Handlers) requestLogger(r *http.Request) *zap.Logger {
	return observability.RequestLogger(r.Context(), h.log)
}

// resolveModel turns the {model} path parameter into a descriptor. Any
// failure is an access denial, never a 404: probing must not reveal
// which model names exist.
func (h *Handlers) resolveModel(w http.ResponseWriter, r *http.Request) (*model.ModelDescriptor, bool) {
	name := chi.URLParam(r, "model")
	desc, err := h.registry.ValidateModelAccess(name)
	if err != nil {
		h.Deny(w, r, err)
		return nil, false
	}
	return desc, true
}

// verifyCapability checks a capability token against the request it is
// supposed to authorize. On success it returns the token's claims.
func (h *Handlers) verifyCapability(r *http.Request, tokenString, modelName, action, recordID string) (map[string]any, error) {
	if tokenString == "" {
		if h.metrics != nil {
			h.metrics.RecordTokenVerification("missing")
		}
		return nil, model.NewTokenInvalidError()
	}
	claims, err := h.signer.Verify(tokenString, h.cfg.Admin.TokenMaxAge)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenVerification(model.CodeOf(err))
		}
		return nil, err
	}
	if err := token.MatchRequest(claims, modelName, action, recordID); err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenVerification(model.CodeOf(err))
		}
		return nil, err
	}
	if h.cfg.Admin.SingleUseTokens && h.replay != nil {
		if id := token.ID(claims); id != "" {
			if err := h.replay.Consume(r.Context(), id, h.cfg.Admin.TokenMaxAge); err != nil {
				if h.metrics != nil {
					h.metrics.RecordTokenVerification(model.CodeOf(err))
				}
				return nil, err
			}
		}
	}
	if h.metrics != nil {
		h.metrics.RecordTokenVerification("ok")
	}
	return claims, nil
}

func (h *Handlers) mintToken(modelName, action, subtype, recordID string) (string, error) {
	tok, err := h.signer.CreateCapabilityToken(modelName, action, subtype, recordID)
	if err != nil {
		return "", err
	}
	if h.metrics != nil {
		h.metrics.RecordTokenIssued(action)
	}
	return tok, nil
}

func (h *Handlers) recordAudit(r *http.Request, action, modelName, recordID string, data map[string]any) {
	h.auditor.Record(r.Context(), audit.Entry{
		Model:    modelName,
		RecordID: recordID,
		Action:   action,
		Actor:    r.Header.Get("X-Admin-User"),
		RemoteIP: clientIP(r),
		Data:     observability.RedactBody(data, nil),
	})
}

// mutationRequest is the body shape of create, update, and bulk-delete
// requests.
type mutationRequest struct {
	Token string         `json:"token"`
	Data  map[string]any `json:"data"`
	IDs   []string       `json:"ids"`
}

func readMutation(r *http.Request) (*mutationRequest, error) {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	var req mutationRequest
	if err := dec.Decode(&req); err != nil {
		return nil, model.NewBadRequestError("invalid request body")
	}
	return &req, nil
}

// fieldView is how one form field is presented to the client.
type fieldView struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Required   bool   `json:"required"`
	MaxLength  int    `json:"max_length,omitempty"`
	References string `json:"references,omitempty"`
}

func fieldViews(fields []model.FieldDescriptor) []fieldView {
	out := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldView{
			Name:       f.Name,
			Label:      humanize(f.Name),
			Kind:       string(f.Kind),
			Required:   !f.Nullable,
			MaxLength:  f.MaxLength,
			References: f.References,
		})
	}
	return out
}

// humanize turns a snake_case column name into a display label,
// "created_at" becoming "Created At".
func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		if w == "id" {
			words[i] = "ID"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// modelSummary is one entry of the model index.
type modelSummary struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Icon     string   `json:"icon"`
	ReadOnly bool     `json:"read_only"`
	Subtypes []string `json:"subtypes,omitempty"`
	URL      string   `json:"url"`
}

func (h *Handlers) summarize(desc *model.ModelDescriptor) modelSummary {
	return modelSummary{
		Name:     desc.Name,
		Label:    humanize(desc.Name),
		Icon:     desc.Icon,
		ReadOnly: desc.ReadOnly,
		Subtypes: desc.Subtypes,
		URL:      h.cfg.Admin.Prefix + "/" + desc.Name,
	}
}

// HandleDashboard serves the admin landing payload: per-model record
// counts and the most recent audit trail entries.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	type modelCount struct {
		modelSummary
		Count int64 `json:"count"`
	}

	counts := make([]modelCount, 0, h.registry.Len())
	for _, desc := range h.registry.All() {
		n, err := h.engine.Count(r.Context(), desc)
		if err != nil {
			h.requestLogger(r).Warn("dashboard count failed",
				zap.String("model", desc.Name), zap.Error(err))
			n = -1
		}
		counts = append(counts, modelCount{modelSummary: h.summarize(desc), Count: n})
	}

	recent, err := h.auditor.Recent(r.Context(), 10)
	if err != nil {
		h.requestLogger(r).Warn("recent audit lookup failed", zap.Error(err))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"title":        h.cfg.Admin.Title,
		"models":       counts,
		"recent_audit": recent,
	})
}

// HandleModels serves the model index.
func (h *Handlers) HandleModels(w http.ResponseWriter, r *http.Request) {
	summaries := make([]modelSummary, 0, h.registry.Len())
	for _, desc := range h.registry.All() {
		summaries = append(summaries, h.summarize(desc))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"models": summaries})
}

// parseListQuery builds a ListQuery from URL parameters. Reserved
// parameter names configure pagination, search, and ordering; every
// other parameter is treated as an exact-match filter.
func parseListQuery(r *http.Request) model.ListQuery {
	q := r.URL.Query()
	lq := model.ListQuery{
		Search:  q.Get("q"),
		OrderBy: q.Get("order"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		lq.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil {
		lq.PerPage = v
	}
	for key, vals := range q {
		switch key {
		case "page", "per_page", "q", "order", "token", "subtype":
			continue
		}
		if len(vals) > 0 {
			if lq.Filters == nil {
				lq.Filters = map[string]any{}
			}
			lq.Filters[key] = vals[0]
		}
	}
	return lq
}

// listColumns returns the column set shown on the list view: the
// descriptor's list fields, or the first five schema fields when none
// were configured.
func listColumns(desc *model.ModelDescriptor) []string {
	if len(desc.ListFields) > 0 {
		return desc.ListFields
	}
	n := len(desc.Schema.Fields)
	if n > 5 {
		n = 5
	}
	cols := make([]string, 0, n)
	for _, f := range desc.Schema.Fields[:n] {
		cols = append(cols, f.Name)
	}
	return cols
}

// HandleList serves one page of records with the table configuration the
// client needs to render it.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}

	start := time.Now()
	q := parseListQuery(r)
	page, err := h.engine.List(r.Context(), desc, q)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "list", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	cols := listColumns(desc)
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = humanize(c)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"model":         h.summarize(desc),
		"columns":       cols,
		"column_labels": labels,
		"search_fields": desc.SearchFields,
		"order_fields":  desc.OrderFields,
		"filters":       q.Filters,
		"search":        q.Search,
		"page":          page,
	})
}

// HandleExport streams every matching record as CSV. Rows are fetched in
// chunks so the export never materializes the full result set.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}

	cols := listColumns(desc)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", desc.Name+".csv"))
	w.WriteHeader(http.StatusOK)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = humanize(c)
	}
	cw := csv.NewWriter(w)
	cw.Write(header)

	q := parseListQuery(r)
	rows, err := h.engine.Walk(r.Context(), desc, q, exportChunkSize, func(records []model.Record) error {
		for _, rec := range records {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = formatCSV(rec[c])
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	cw.Flush()
	if err != nil {
		h.requestLogger(r).Error("csv export aborted",
			zap.String("model", desc.Name),
			zap.Int("rows", rows),
			zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.RecordExportRows(desc.Name, rows)
	}
	h.recordAudit(r, audit.ActionExport, desc.Name, "", map[string]any{"rows": rows})
}

func formatCSV(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// HandleNewForm serves the create-form bundle: the form fields, a minted
// create capability, and, for polymorphic models, the fragment endpoint
// plus a token to call it with.
func (h *Handlers) HandleNewForm(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	if desc.ReadOnly {
		h.Deny(w, r, model.NewForbiddenError("model is read-only"))
		return
	}

	createToken, err := h.mintToken(desc.Name, token.ActionCreate, "", "")
	if err != nil {
		WriteError(w, err)
		return
	}

	body := map[string]any{
		"model":  h.summarize(desc),
		"fields": fieldViews(desc.FormFields()),
		"token":  createToken,
	}
	if len(desc.Subtypes) > 0 {
		fragToken, err := h.mintToken(desc.Name, token.ActionLoadFragment, "", "")
		if err != nil {
			WriteError(w, err)
			return
		}
		body["subtypes"] = desc.Subtypes
		body["fragment_url"] = h.cfg.Admin.Prefix + "/fragments"
		body["fragment_token"] = fragToken
	}
	WriteJSON(w, http.StatusOK, body)
}

// HandleFragment serves the extra form fields of one subtype. The caller
// must present a load-fragment capability for the model, and the subtype
// must belong to that model.
func (h *Handlers) HandleFragment(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	subtype := r.URL.Query().Get("subtype")

	claims, err := h.signer.Verify(tokenString, h.cfg.Admin.TokenMaxAge)
	if err != nil {
		h.Deny(w, r, err)
		return
	}
	modelName := token.Model(claims)
	if err := token.MatchRequest(claims, modelName, token.ActionLoadFragment, ""); err != nil {
		h.Deny(w, r, err)
		return
	}
	desc, err := h.registry.ValidateSubtypeAccess(modelName, subtype)
	if err != nil {
		h.Deny(w, r, err)
		return
	}
	sub := desc.Subtype(subtype)
	if sub == nil {
		h.Deny(w, r, model.NewSubtypeNotAllowedError(modelName, subtype))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"model":   modelName,
		"subtype": subtype,
		"fields":  fieldViews(sub.Fields),
	})
}

// HandleCreate inserts a record. The request must carry a create
// capability for exactly this model.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	if desc.ReadOnly {
		h.Deny(w, r, model.NewForbiddenError("model is read-only"))
		return
	}
	req, err := readMutation(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	claims, err := h.verifyCapability(r, req.Token, desc.Name, token.ActionCreate, "")
	if err != nil {
		h.Deny(w, r, err)
		return
	}
	if sub := token.Subtype(claims); sub != "" {
		if _, err := h.registry.ValidateSubtypeAccess(desc.Name, sub); err != nil {
			h.Deny(w, r, err)
			return
		}
	}

	values := CoerceValues(desc, req.Data)
	start := time.Now()
	created, err := h.engine.Create(r.Context(), desc, values)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "create", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	id := fmt.Sprint(created[desc.PrimaryKey()])
	h.recordAudit(r, audit.ActionCreate, desc.Name, id, values)
	WriteJSON(w, http.StatusCreated, map[string]any{"record": created})
}

// HandleDetail serves the edit bundle for one record: its current
// values, the form fields, and freshly minted update and delete
// capabilities bound to this record.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	start := time.Now()
	record, err := h.engine.Get(r.Context(), desc, id)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "get", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	body := map[string]any{
		"model":  h.summarize(desc),
		"record": record,
		"fields": fieldViews(desc.FormFields()),
	}
	if !desc.ReadOnly {
		updateToken, err := h.mintToken(desc.Name, token.ActionUpdate, "", id)
		if err != nil {
			WriteError(w, err)
			return
		}
		deleteToken, err := h.mintToken(desc.Name, token.ActionDelete, "", id)
		if err != nil {
			WriteError(w, err)
			return
		}
		body["update_token"] = updateToken
		body["delete_token"] = deleteToken
	}
	WriteJSON(w, http.StatusOK, body)
}

// HandleUpdate applies changes to one record. The capability must name
// this model, the update action, and this exact record.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	if desc.ReadOnly {
		h.Deny(w, r, model.NewForbiddenError("model is read-only"))
		return
	}
	id := chi.URLParam(r, "id")
	req, err := readMutation(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if _, err := h.verifyCapability(r, req.Token, desc.Name, token.ActionUpdate, id); err != nil {
		h.Deny(w, r, err)
		return
	}

	values := CoerceValues(desc, req.Data)
	start := time.Now()
	updated, err := h.engine.Update(r.Context(), desc, id, values)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "update", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionUpdate, desc.Name, id, values)
	WriteJSON(w, http.StatusOK, map[string]any{"record": updated})
}

// HandleDelete removes one record. The capability arrives as a query
// parameter since DELETE requests carry no body.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	if desc.ReadOnly {
		h.Deny(w, r, model.NewForbiddenError("model is read-only"))
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.verifyCapability(r, r.URL.Query().Get("token"), desc.Name, token.ActionDelete, id); err != nil {
		h.Deny(w, r, err)
		return
	}

	start := time.Now()
	err := h.engine.Delete(r.Context(), desc, id)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "delete", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionDelete, desc.Name, id, nil)
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// HandleBulkDelete removes a batch of records under a single delete
// capability minted without a record binding.
func (h *Handlers) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	desc, ok := h.resolveModel(w, r)
	if !ok {
		return
	}
	if desc.ReadOnly {
		h.Deny(w, r, model.NewForbiddenError("model is read-only"))
		return
	}
	req, err := readMutation(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if _, err := h.verifyCapability(r, req.Token, desc.Name, token.ActionDelete, ""); err != nil {
		h.Deny(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		WriteError(w, model.NewBadRequestError("no ids given"))
		return
	}

	ids := make([]any, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = id
	}
	start := time.Now()
	deleted, err := h.engine.BulkDelete(r.Context(), desc, ids)
	if h.metrics != nil {
		h.metrics.RecordCRUDOperation(desc.Name, "bulk_delete", statusLabel(err), time.Since(start))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	h.recordAudit(r, audit.ActionBulkDelete, desc.Name, "", map[string]any{
		"ids":     req.IDs,
		"deleted": deleted,
	})
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
