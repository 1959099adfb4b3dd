package delivery

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/louisbranch/scentshelf/internal/assetstore"
	"github.com/louisbranch/scentshelf/internal/services/delivery/platform/weberror"
	"github.com/louisbranch/scentshelf/internal/services/delivery/static"
)

// assetHandler streams asset representations for GET and HEAD requests.
// Each request resolves independently; the handler holds no mutable state.
type assetHandler struct {
	store    *assetstore.Store
	fallback []byte
}

func newAssetHandler(store *assetstore.Store) *assetHandler {
	return &assetHandler{store: store, fallback: static.EntryPage}
}

func (h *assetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	asset, err := h.store.Resolve(r.URL.Path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep := h.store.Negotiate(asset, r.Header.Get("Accept-Encoding"))
	h.writeRepresentation(w, r, rep)
}

// writeRepresentation streams the negotiated bytes. Content-Type names the
// logical asset; Content-Length and Content-Encoding describe the bytes
// actually sent.
func (h *assetHandler) writeRepresentation(w http.ResponseWriter, r *http.Request, rep assetstore.Representation) {
	body, err := rep.Open()
	if err != nil {
		h.writeError(w, r, fmt.Errorf("open %s: %w", rep.Path, err))
		return
	}
	defer body.Close()

	header := w.Header()
	header.Set("Content-Type", rep.ContentType)
	header.Set("Content-Length", strconv.FormatInt(rep.Size, 10))
	if rep.Encoding != "" {
		header.Set("Content-Encoding", rep.Encoding)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	// A failed copy after the status line usually means the client went
	// away; the response cannot be amended either way.
	_, _ = io.Copy(w, body)
}

// writeFallback serves the embedded placeholder entry page.
func (h *assetHandler) writeFallback(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(h.fallback)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(h.fallback)
}

func (h *assetHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, assetstore.ErrNotFound) {
		if assetstore.IsEntryPath(r.URL.Path) {
			h.writeFallback(w, r)
			return
		}
		weberror.Write(w, weberror.E(weberror.KindNotFound, "file not found"))
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = "-"
	}
	log.Printf("serve failed method=%s path=%s request_id=%s error=%v", r.Method, r.URL.Path, requestID, err)
	weberror.Write(w, weberror.E(weberror.KindServer, "asset read failed"))
}
