package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"mediastore/internal/media"
	"mediastore/internal/storage"
	"mediastore/internal/telemetry"

	"github.com/go-playground/validator/v10"
)

// PictureHandler is the admin-facing JSON API over picture records.
type PictureHandler struct {
	Pictures  media.PictureService
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
	Sizes     []int // allowed thumbnail widths, used to advertise variant URLs
	MaxUpload int64

	validate *validator.Validate
}

func NewPictureHandler(pictures media.PictureService, sizes []int, maxUpload int64, logger *slog.Logger, metrics *telemetry.Metrics) *PictureHandler {
	return &PictureHandler{
		Pictures:  pictures,
		Logger:    logger,
		Metrics:   metrics,
		Sizes:     sizes,
		MaxUpload: maxUpload,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

type pictureResponse struct {
	*storage.Picture
	URL       string   `json:"url"`
	Variants  []string `json:"variants,omitempty"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

func (h *PictureHandler) toResponse(p *storage.Picture, duplicate bool) *pictureResponse {
	resp := &pictureResponse{
		Picture:   p,
		URL:       h.Pictures.URL(p, 0, "", media.PictureEntity),
		Duplicate: duplicate,
	}
	for _, size := range h.Sizes {
		resp.Variants = append(resp.Variants, h.Pictures.URL(p, size, "", media.PictureEntity))
	}
	return resp
}

type listResponse struct {
	Items       []*pictureResponse `json:"items"`
	TotalCount  int64              `json:"total_count"`
	PageIndex   int                `json:"page_index"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	HasNextPage bool               `json:"has_next_page"`
}

type uploadForm struct {
	SeoName      string `validate:"omitempty,max=200"`
	IsNew        bool
	ProductID    int64 `validate:"omitempty,gt=0"`
	DisplayOrder int   `validate:"gte=0,lte=1000"`
}

// HandleUpload accepts a multipart upload ("file" plus optional seo_name,
// is_new, product_id, display_order). An upload whose binary is already
// stored answers with the existing record instead of creating a copy.
func (h *PictureHandler) HandleUpload() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload+(1<<20)) // allow some form overhead
		if err := r.ParseMultipartForm(h.MaxUpload); err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: `missing "file" form field`})
			return
		}
		defer file.Close()

		binary, err := io.ReadAll(file)
		if err != nil {
			respondError(h.Logger, w, r, fmt.Errorf("reading upload: %w", err))
			return
		}

		form := uploadForm{
			SeoName:      r.FormValue("seo_name"),
			IsNew:        r.FormValue("is_new") == "true",
			ProductID:    parseInt64(r.FormValue("product_id")),
			DisplayOrder: int(parseInt64(r.FormValue("display_order"))),
		}
		if err := h.validate.Struct(form); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		displayName := form.SeoName
		if displayName == "" {
			displayName = header.Filename
		}

		duplicate, err := h.Pictures.FindDuplicate(ctx, binary)
		if err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		var p *storage.Picture
		if duplicate != nil {
			h.Metrics.DuplicateHitsTotal.Add(ctx, 1)
			p = duplicate
		} else {
			p, err = h.Pictures.Insert(ctx, binary, header.Header.Get("Content-Type"), displayName, form.IsNew)
			if err != nil {
				respondError(h.Logger, w, r, err)
				return
			}
			h.Metrics.UploadsTotal.Add(ctx, 1)
			h.Metrics.RecordPicturesStored(ctx, 1)
		}

		if form.ProductID > 0 {
			if err := h.Pictures.AssignToProduct(ctx, form.ProductID, p.ID, form.DisplayOrder); err != nil {
				respondError(h.Logger, w, r, err)
				return
			}
		}

		status := http.StatusCreated
		if duplicate != nil {
			status = http.StatusOK
		}
		respondJSON(w, status, h.toResponse(p, duplicate != nil))
	})
}

func (h *PictureHandler) HandleGet() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid picture id"})
			return
		}

		p, err := h.Pictures.Get(r.Context(), id)
		if err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, h.toResponse(p, false))
	})
}

type listQuery struct {
	PageIndex int `validate:"gte=0"`
	PageSize  int `validate:"gte=1,lte=200"`
}

func (h *PictureHandler) HandleList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := listQuery{
			PageIndex: int(parseInt64(r.URL.Query().Get("page"))),
			PageSize:  50,
		}
		if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
			query.PageSize = int(parseInt64(sizeStr))
		}
		if err := h.validate.Struct(query); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		page, err := h.Pictures.List(r.Context(), query.PageIndex, query.PageSize)
		if err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		resp := listResponse{
			Items:       make([]*pictureResponse, 0, len(page.Items)),
			TotalCount:  page.TotalCount,
			PageIndex:   page.PageIndex,
			PageSize:    page.PageSize,
			TotalPages:  page.TotalPages(),
			HasNextPage: page.HasNextPage(),
		}
		for _, p := range page.Items {
			resp.Items = append(resp.Items, h.toResponse(p, false))
		}

		respondJSON(w, http.StatusOK, resp)
	})
}

func (h *PictureHandler) HandleListByProduct() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || productID <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
			return
		}

		limit := int(parseInt64(r.URL.Query().Get("limit")))

		pictures, err := h.Pictures.ListByProduct(r.Context(), productID, limit)
		if err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		items := make([]*pictureResponse, 0, len(pictures))
		for _, p := range pictures {
			items = append(items, h.toResponse(p, false))
		}
		respondJSON(w, http.StatusOK, items)
	})
}

type setSeoFilenameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (h *PictureHandler) HandleSetSeoFilename() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid picture id"})
			return
		}

		var req setSeoFilenameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if err := h.validate.Struct(req); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		p, err := h.Pictures.SetSeoFilename(r.Context(), id, req.Name)
		if err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, h.toResponse(p, false))
	})
}

func (h *PictureHandler) HandleDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid picture id"})
			return
		}

		if err := h.Pictures.Delete(r.Context(), id); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}
		h.Metrics.RecordPicturesStored(r.Context(), -1)

		w.WriteHeader(http.StatusNoContent)
	})
}

type assignRequest struct {
	DisplayOrder int `json:"display_order" validate:"gte=0,lte=1000"`
}

func (h *PictureHandler) HandleAssignToProduct() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, pictureID, ok := productPicturePath(r)
		if !ok {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product or picture id"})
			return
		}

		var req assignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if err := h.validate.Struct(req); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		if err := h.Pictures.AssignToProduct(r.Context(), productID, pictureID, req.DisplayOrder); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *PictureHandler) HandleUnassignFromProduct() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, pictureID, ok := productPicturePath(r)
		if !ok {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product or picture id"})
			return
		}

		if err := h.Pictures.UnassignFromProduct(r.Context(), productID, pictureID); err != nil {
			respondError(h.Logger, w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func productPicturePath(r *http.Request) (productID, pictureID int64, ok bool) {
	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || productID <= 0 {
		return 0, 0, false
	}
	pictureID, err = strconv.ParseInt(r.PathValue("pictureID"), 10, 64)
	if err != nil || pictureID <= 0 {
		return 0, 0, false
	}
	return productID, pictureID, true
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
