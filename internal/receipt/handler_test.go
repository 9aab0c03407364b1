package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/receipt"
)

type stubReceiptService struct {
	ingested    []byte
	contentType string
	ingestErr   error
	receipts    []*receipt.Receipt
	getErr      error
}

func (s *stubReceiptService) Ingest(_ context.Context, userID int64, image []byte, contentType string) (*receipt.Receipt, error) {
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	s.ingested = image
	s.contentType = contentType
	merchant, category := "Uber", "Transport"
	amount := decimal.RequireFromString("24.00")
	return &receipt.Receipt{
		ID: 11, UserID: userID, ImageURL: "data:image/png;base64,aGk=",
		MerchantName: &merchant, Amount: &amount, AmountInUSD: &amount, Currency: "USD",
		Category: &category, Items: []receipt.LineItem{}, Status: receipt.StatusCompleted,
		CreatedAt: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubReceiptService) List(context.Context, int64) ([]*receipt.Receipt, error) {
	return s.receipts, nil
}

func (s *stubReceiptService) Get(_ context.Context, _, id int64) (*receipt.Receipt, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &receipt.Receipt{ID: id, Status: receipt.StatusProcessing, Items: []receipt.LineItem{}}, nil
}

func multipartBody(field, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="receipt.png"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Handler", func() {
	var (
		svc     *stubReceiptService
		handler *receipt.Handler
		router  chi.Router
	)

	serve := func(req *http.Request, userID int64) *httptest.ResponseRecorder {
		if userID > 0 {
			req = req.WithContext(internal.ContextWithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeError := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	BeforeEach(func() {
		svc = &stubReceiptService{}
		handler = receipt.NewHandler(svc, 16)
		router = chi.NewRouter()
		router.Post("/api/receipts/upload", handler.Upload)
		router.Get("/api/receipts", handler.List)
		router.Get("/api/receipts/{id}", handler.Get)
	})

	Describe("Upload", func() {
		It("returns 201 with the processed receipt in camelCase", func() {
			// Given
			body, ct := multipartBody(receipt.UploadField, "image/png", []byte("png-bytes"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			// When
			rec := serve(req, 7)

			// Then
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(svc.ingested).To(Equal([]byte("png-bytes")))
			Expect(svc.contentType).To(Equal("image/png"))
			var got map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got).To(HaveKeyWithValue("merchantName", "Uber"))
			Expect(got).To(HaveKeyWithValue("amountInUsd", 24.0))
			Expect(got).To(HaveKeyWithValue("userId", 7.0))
			Expect(got).To(HaveKeyWithValue("status", "completed"))
			Expect(got).To(HaveKey("imageUrl"))
		})

		It("sniffs the content type when the part has none", func() {
			png := []byte("\x89PNG\r\n\x1a\n0000")
			body, ct := multipartBody(receipt.UploadField, "", png)
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(svc.contentType).To(Equal("image/png"))
		})

		It("returns 400 when no image field is present", func() {
			body, ct := multipartBody("document", "image/png", []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec)).To(HaveKeyWithValue("message", "No image provided"))
		})

		It("returns 400 for a non-multipart body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", bytes.NewBufferString("{}"))
			req.Header.Set("Content-Type", "application/json")

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 when the image exceeds the limit", func() {
			body, ct := multipartBody(receipt.UploadField, "image/png", bytes.Repeat([]byte("a"), 64))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec)).To(HaveKeyWithValue("message", receipt.ErrImageTooLarge.Message))
		})

		It("returns 500 with a generic message when processing fails", func() {
			svc.ingestErr = receipt.ErrProcessingFailed.WithCause(errBoom)
			body, ct := multipartBody(receipt.UploadField, "image/png", []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(rec)).To(Equal(map[string]interface{}{
				"code":    500.0,
				"message": "Failed to process receipt",
			}))
		})

		It("returns 401 without an authenticated user", func() {
			body, ct := multipartBody(receipt.UploadField, "image/png", []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
			req.Header.Set("Content-Type", ct)

			rec := serve(req, 0)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("List", func() {
		It("returns an empty JSON array when there are no receipts", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`[]`))
		})
	})

	Describe("Get", func() {
		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/abc", nil)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 when the service reports not found", func() {
			svc.getErr = receipt.ErrReceiptNotFound
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/5", nil)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(rec)).To(HaveKeyWithValue("message", "Receipt not found"))
		})

		It("returns the receipt", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/5", nil)

			rec := serve(req, 7)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var got map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got).To(HaveKeyWithValue("id", 5.0))
			Expect(got).To(HaveKeyWithValue("status", "processing"))
		})
	})
})
