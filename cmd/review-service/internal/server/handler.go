package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/mux"

	"docreview/cmd/review-service/internal/domain"
	"docreview/cmd/review-service/internal/service"
	apperrors "docreview/pkg/errors"
)

// ReviewHandler HTTP处理器，把REST请求映射到服务层
type ReviewHandler struct {
	svc *service.ReviewService
	log *log.Helper
}

// NewReviewHandler 创建HTTP处理器
func NewReviewHandler(svc *service.ReviewService, logger log.Logger) *ReviewHandler {
	return &ReviewHandler{
		svc: svc,
		log: log.NewHelper(log.With(logger, "module", "http-handler")),
	}
}

// RegisterRoutes 注册REST路由
func RegisterRoutes(router *mux.Router, h *ReviewHandler) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/collections", h.CreateCollection).Methods("POST")
	api.HandleFunc("/collections", h.ListCollections).Methods("GET")
	api.HandleFunc("/collections/{id}", h.GetCollection).Methods("GET")
	api.HandleFunc("/collections/{id}/visibility", h.SetVisibility).Methods("PUT")
	api.HandleFunc("/collections/{id}/documents", h.AddDocuments).Methods("POST")
	api.HandleFunc("/collections/{id}/documents", h.ListDocuments).Methods("GET")
	api.HandleFunc("/collections/{id}/status-counts", h.StatusCounts).Methods("GET")
	api.HandleFunc("/collections/{id}/requeue", h.Requeue).Methods("POST")
	api.HandleFunc("/collections/{id}/stats", h.AggregatedStats).Methods("GET")
	api.HandleFunc("/stats/compare", h.CompareStats).Methods("POST")

	api.HandleFunc("/tag-groups", h.CreateTagGroup).Methods("POST")
	api.HandleFunc("/tag-groups", h.ListTagGroups).Methods("GET")
	api.HandleFunc("/tag-groups/{id}", h.GetTagGroup).Methods("GET")
	api.HandleFunc("/tag-groups/{id}/recompute", h.RecomputeTagGroup).Methods("POST")
	api.HandleFunc("/tag-groups/{id}/clusters", h.ListClusters).Methods("GET")
	api.HandleFunc("/tag-groups/{id}/clusters/{key}/documents", h.ClusterDocuments).Methods("GET")
}

// CreateCollection 创建集合
func (h *ReviewHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.CreateCollection(r.Context(), &service.CreateCollectionRequest{
		CallerID: CallerFromContext(r.Context()),
		Name:     body.Name,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

// ListCollections 列出集合
func (h *ReviewHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePage(r)
	resp, err := h.svc.ListCollections(r.Context(), &service.ListCollectionsRequest{
		OwnerID: r.URL.Query().Get("owner_id"),
		Offset:  int32(offset),
		Limit:   int32(limit),
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetCollection 获取集合
func (h *ReviewHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetCollection(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// SetVisibility 设置集合可见性
func (h *ReviewHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsPublic bool `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.SetCollectionVisibility(r.Context(), &service.SetCollectionVisibilityRequest{
		CallerID:     CallerFromContext(r.Context()),
		CollectionID: mux.Vars(r)["id"],
		IsPublic:     body.IsPublic,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// AddDocuments 添加文档
func (h *ReviewHandler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Documents []*service.DocumentInput `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Documents) == 0 {
		h.respondError(w, http.StatusBadRequest, "documents required")
		return
	}

	resp, err := h.svc.AddDocuments(r.Context(), &service.AddDocumentsRequest{
		CallerID:     CallerFromContext(r.Context()),
		CollectionID: mux.Vars(r)["id"],
		Documents:    body.Documents,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

// ListDocuments 列出文档
func (h *ReviewHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePage(r)
	byPriority, _ := strconv.ParseBool(r.URL.Query().Get("by_priority"))

	resp, err := h.svc.ListDocuments(r.Context(), &service.ListDocumentsRequest{
		CollectionID: mux.Vars(r)["id"],
		TagFilter:    r.URL.Query().Get("tag"),
		ByPriority:   byPriority,
		Offset:       int32(offset),
		Limit:        int32(limit),
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// StatusCounts 状态计数
func (h *ReviewHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetStatusCounts(r.Context(), &service.StatusCountsRequest{
		CollectionID: mux.Vars(r)["id"],
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Requeue 重新入队
func (h *ReviewHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MainIDs   []string `json:"main_ids"`
		MetaOnly  bool     `json:"meta_only"`
		ErrorOnly bool     `json:"error_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Requeue(r.Context(), &service.RequeueRequest{
		CallerID:     CallerFromContext(r.Context()),
		CollectionID: mux.Vars(r)["id"],
		MainIDs:      body.MainIDs,
		MetaOnly:     body.MetaOnly,
		ErrorOnly:    body.ErrorOnly,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// AggregatedStats 集合统计
func (h *ReviewHandler) AggregatedStats(w http.ResponseWriter, r *http.Request) {
	axes := splitParam(r.URL.Query().Get("axes"))
	if len(axes) == 0 {
		h.respondError(w, http.StatusBadRequest, "axes required")
		return
	}

	resp, err := h.svc.GetAggregatedStats(r.Context(), &service.AggregatedStatsRequest{
		CollectionID: mux.Vars(r)["id"],
		Axes:         axes,
		TagFilter:    r.URL.Query().Get("tag"),
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// CompareStats 多集合统计对比
func (h *ReviewHandler) CompareStats(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CollectionIDs []string `json:"collection_ids"`
		Axes          []string `json:"axes"`
		Tag           string   `json:"tag"`
		Normalization string   `json:"normalization"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.CollectionIDs) == 0 || len(body.Axes) == 0 {
		h.respondError(w, http.StatusBadRequest, "collection_ids and axes required")
		return
	}

	resp, err := h.svc.CompareStats(r.Context(), &service.CompareStatsRequest{
		CollectionIDs: body.CollectionIDs,
		Axes:          body.Axes,
		TagFilter:     body.Tag,
		Normalization: body.Normalization,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// CreateTagGroup 创建标签组
func (h *ReviewHandler) CreateTagGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name              string   `json:"name"`
		Bases             []string `json:"bases"`
		NClusters         *int     `json:"n_clusters"`
		DistanceThreshold *float64 `json:"distance_threshold"`
		IsUpdating        bool     `json:"is_updating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.CreateTagGroup(r.Context(), &service.CreateTagGroupRequest{
		Name:              body.Name,
		Bases:             body.Bases,
		NClusters:         body.NClusters,
		DistanceThreshold: body.DistanceThreshold,
		IsUpdating:        body.IsUpdating,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

// ListTagGroups 列出标签组
func (h *ReviewHandler) ListTagGroups(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePage(r)
	resp, err := h.svc.ListTagGroups(r.Context(), &service.ListTagGroupsRequest{
		Offset: int32(offset),
		Limit:  int32(limit),
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GetTagGroup 获取标签组
func (h *ReviewHandler) GetTagGroup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetTagGroup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// RecomputeTagGroup 重算标签组
func (h *ReviewHandler) RecomputeTagGroup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.RecomputeTagGroup(r.Context(), &service.RecomputeTagGroupRequest{
		TagGroup: mux.Vars(r)["id"],
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// ListClusters 列出current版本的簇
func (h *ReviewHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.ListClusters(r.Context(), &service.ListClustersRequest{
		TagGroup: mux.Vars(r)["id"],
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// ClusterDocuments 簇成员的文档视图
func (h *ReviewHandler) ClusterDocuments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		h.respondError(w, http.StatusBadRequest, "collection_id required")
		return
	}

	resp, err := h.svc.GetClusterDocuments(r.Context(), &service.ClusterDocumentsRequest{
		TagGroup:     vars["id"],
		ClusterKey:   vars["key"],
		CollectionID: collectionID,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// respondDomainError 领域错误映射到传输层错误
func (h *ReviewHandler) respondDomainError(w http.ResponseWriter, err error) {
	kerr := toTransportError(err)
	if kerr.Code >= http.StatusInternalServerError {
		h.log.Errorf("internal error: %v", err)
	}
	h.respondJSON(w, int(kerr.Code), map[string]string{
		"error":  kerr.Message,
		"reason": kerr.Reason,
	})
}

// toTransportError 领域错误到kratos错误的映射
func toTransportError(err error) *kerrors.Error {
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrTagGroupNotFound):
		return apperrors.NewNotFound("NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrCollectionReadonly):
		return apperrors.NewReadonly(err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		return apperrors.NewForbidden("NOT_OWNER", err.Error())
	case errors.Is(err, domain.ErrTagGroupNameTaken):
		return apperrors.NewConflict("NAME_TAKEN", err.Error())
	case errors.Is(err, domain.ErrNoCurrentVersion):
		return apperrors.NewConflict("NO_CURRENT_VERSION", err.Error())
	case errors.Is(err, domain.ErrInvalidClusterParams),
		errors.Is(err, domain.ErrEmptyClusterBases),
		errors.Is(err, domain.ErrInvalidCollectionName),
		errors.Is(err, domain.ErrInvalidOwnerID),
		errors.Is(err, domain.ErrInvalidMainID):
		return apperrors.NewBadRequest("INVALID_ARGUMENT", err.Error())
	default:
		return apperrors.NewInternalServerError("INTERNAL", "internal error")
	}
}

func (h *ReviewHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Errorf("write response: %v", err)
	}
}

func (h *ReviewHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func parsePage(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
