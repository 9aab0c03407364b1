package receipt

import (
	"net/http"

	"github.com/frahmantamala/receiptlens/internal"
)

var (
	ErrReceiptNotFound  = internal.NewNotFoundError("Receipt not found", internal.ErrCodeReceiptNotFound)
	ErrNoImage          = internal.NewValidationError("No image provided", internal.ErrCodeNoImage)
	ErrImageTooLarge    = internal.NewValidationError("Image is too large", internal.ErrCodeImageTooLarge)
	ErrUnsupportedImage = internal.NewValidationError("Uploaded file is not an image", internal.ErrCodeUnsupportedImage)
	ErrReceiptFinalized = internal.NewConflictError("Receipt is no longer processing", internal.ErrCodeReceiptFinalized)

	ErrProcessingFailed = &internal.AppError{
		Type:       internal.ErrorTypeInternal,
		Code:       internal.ErrCodeProcessingFailed,
		Message:    "Failed to process receipt",
		StatusCode: http.StatusInternalServerError,
	}
)
