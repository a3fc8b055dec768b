package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/ctxutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

const (
	payloadNamespaceKey = "_lc_namespace"
	payloadProductIDKey = "product_id"
	payloadModelKey     = "embedding_model"
	productsNamespace   = "products"
	maxErrorBodyBytes   = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("7b1d3c52-5f0e-4c1b-9a57-2e4c9d6b8f10")

// ProductVector is one product-name embedding.
type ProductVector struct {
	ProductID uuid.UUID
	Model     string
	Vector    []float32
}

type Match struct {
	ProductID uuid.UUID
	Score     float64
}

// ProductIndex is an approximate nearest-neighbour index over product-name vectors.
type ProductIndex interface {
	Upsert(ctx context.Context, vectors []ProductVector) error
	Search(ctx context.Context, model string, q []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, productIDs []uuid.UUID) error
}

type productIndex struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	ns       string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewProductIndex checks Qdrant readiness and creates the collection when it is missing.
func NewProductIndex(ctx context.Context, log *logger.Logger, cfg Config) (ProductIndex, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}
	s := newProductIndex(log, cfg, &http.Client{Timeout: cfg.Timeout})
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	log.Info(
		"Qdrant product index selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"namespace", s.ns,
		"vector_dim", cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

func newProductIndex(log *logger.Logger, cfg Config, hc *http.Client) *productIndex {
	return &productIndex{
		log:     log.With("service", "QdrantProductIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		ns:      strings.TrimSpace(cfg.NamespacePrefix) + ":" + productsNamespace,
		http:    hc,
	}
}

func (s *productIndex) Upsert(ctx context.Context, vectors []ProductVector) error {
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(vectors))
	for _, v := range vectors {
		if v.ProductID == uuid.Nil {
			return opErr(op, OperationErrorValidation, "product id is required", nil)
		}
		if err := s.checkDim(op, v.Vector); err != nil {
			return err
		}
		points = append(points, map[string]any{
			"id":     s.pointID(v.ProductID),
			"vector": v.Vector,
			"payload": map[string]any{
				payloadNamespaceKey: s.ns,
				payloadProductIDKey: v.ProductID.String(),
				payloadModelKey:     v.Model,
			},
		})
	}
	err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
	observability.Current().IncVectorQuery("qdrant_upsert", statusOf(err))
	return err
}

// Search returns the topK products whose vectors were produced by model, best first.
func (s *productIndex) Search(ctx context.Context, model string, q []float32, topK int) ([]Match, error) {
	const op = "search"
	if err := s.checkDim(op, q); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	must := []any{matchCondition(payloadNamespaceKey, s.ns)}
	if strings.TrimSpace(model) != "" {
		must = append(must, matchCondition(payloadModelKey, model))
	}
	req := map[string]any{
		"vector":       q,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       map[string]any{"must": must},
	}
	var raw []qdrantSearchResultItem
	err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw)
	observability.Current().IncVectorQuery("qdrant", statusOf(err))
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(raw))
	for _, item := range raw {
		idStr, _ := item.Payload[payloadProductIDKey].(string)
		id, perr := uuid.Parse(strings.TrimSpace(idStr))
		if perr != nil {
			s.log.Warn("qdrant point without product id", "point", decodePointID(item.ID))
			continue
		}
		out = append(out, Match{ProductID: id, Score: s.normalizeScore(item.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *productIndex) Delete(ctx context.Context, productIDs []uuid.UUID) error {
	const op = "delete"
	seen := make(map[string]struct{}, len(productIDs))
	points := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id == uuid.Nil {
			continue
		}
		pid := s.pointID(id)
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		points = append(points, pid)
	}
	if len(points) == 0 {
		return nil
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), map[string]any{"points": points}, nil)
}

func (s *productIndex) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err = s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &result)
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound {
		create := map[string]any{"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": "Cosine"}}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil); err != nil {
			return err
		}
		s.log.Info("qdrant collection created", "collection", s.cfg.Collection)
		s.distance = "Cosine"
		return nil
	}
	if err != nil {
		return err
	}
	if size := result.Config.Params.Vectors.Size; size != 0 && size != s.cfg.VectorDim {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message:   fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d", s.cfg.Collection, s.cfg.VectorDim, size),
		}
	}
	s.distance = strings.TrimSpace(result.Config.Params.Vectors.Distance)
	return nil
}

func (s *productIndex) checkDim(op string, v []float32) error {
	if len(v) == 0 {
		return opErr(op, OperationErrorValidation, "vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(v) != s.cfg.VectorDim {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(v)), nil)
	}
	return nil
}

func (s *productIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	s.log.Debug("qdrant request", "op", op, "status", resp.StatusCode, "took", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func (s *productIndex) pointID(productID uuid.UUID) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.ns+"|"+productID.String())).String()
}

func (s *productIndex) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	return strings.TrimSpace(string(raw))
}

// Euclid and manhattan distances are mapped into (0,1] so higher is always closer.
func (s *productIndex) normalizeScore(score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(s.distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
