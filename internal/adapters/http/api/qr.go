package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/triagebooth/internal/domain/catalog"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 320
	minQRSize     = 128
	maxQRSize     = 1024
)

// QRHandler renders printable QR codes for catalog tags.
type QRHandler struct {
	tags TagSource
}

// NewQRHandler creates a new QR handler.
func NewQRHandler(tags TagSource) *QRHandler {
	return &QRHandler{tags: tags}
}

// HandleQR handles GET /api/tags/{tag}/qr[?size=N] requests. The code
// encodes the tag name, which the scanner page sends back as its payload.
func (h *QRHandler) HandleQR(w http.ResponseWriter, r *http.Request) {
	tag := catalog.Normalize(r.PathValue("tag"))
	if !h.known(tag) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %q", ErrUnknownTag, r.PathValue("tag")))
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: size must be between %d and %d", ErrBadRequest, minQRSize, maxQRSize))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(tag, qrcode.Medium, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%w: %w", ErrQREncode, err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}

func (h *QRHandler) known(tag string) bool {
	for _, t := range h.tags.Tags() {
		if t.Name == tag {
			return true
		}
	}
	return false
}
