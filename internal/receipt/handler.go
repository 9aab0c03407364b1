package receipt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/receiptlens/internal/transport"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

// UploadField is the multipart field carrying the receipt image.
const UploadField = "image"

// multipartOverhead leaves room for boundaries and part headers on top of
// the image limit.
const multipartOverhead = 1 << 20

type ServiceAPI interface {
	Ingest(ctx context.Context, userID int64, image []byte, contentType string) (*Receipt, error)
	List(ctx context.Context, userID int64) ([]*Receipt, error)
	Get(ctx context.Context, userID, id int64) (*Receipt, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(service ServiceAPI, maxUploadBytes int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	image, contentType, err := h.readImage(w, r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	receipt, err := h.Service.Ingest(r.Context(), userID, image, contentType)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.Logger.Info("Upload: receipt processed",
		"receipt_id", receipt.ID,
		"user_id", userID,
		"status", receipt.Status)

	h.WriteJSON(w, http.StatusCreated, ToResponse(receipt))
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", ErrImageTooLarge
		}
		return nil, "", ErrNoImage
	}
	defer file.Close()

	reader := io.Reader(file)
	if h.MaxUploadBytes > 0 {
		reader = io.LimitReader(file, h.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", ErrNoImage.WithCause(err)
	}
	if h.MaxUploadBytes > 0 && int64(len(data)) > h.MaxUploadBytes {
		return nil, "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	receipts, err := h.Service.List(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponseList(receipts))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}
	id, ok := h.PathID(w, r, "id")
	if !ok {
		return
	}

	receipt, err := h.Service.Get(r.Context(), userID, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(receipt))
}
