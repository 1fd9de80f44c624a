package api

import (
	"net/http"

	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// QRHandler renders a QR code pointing at the display.
type QRHandler struct {
	publicURL string
}

// NewQRHandler creates a QR handler. An empty publicURL derives the target
// from the request.
func NewQRHandler(publicURL string) *QRHandler {
	return &QRHandler{publicURL: publicURL}
}

// HandleQR handles GET /qr.png.
func (h *QRHandler) HandleQR(w http.ResponseWriter, r *http.Request) {
	const op = "api.qr"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	target := h.publicURL
	if target == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		target = scheme + "://" + r.Host + "/"
	}

	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}
