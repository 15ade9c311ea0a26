/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package blog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// ListResponse is returned by the posts list endpoint. Post content is omitted.
type ListResponse struct {
	Posts []*Post `json:"posts"`
}

// Handler serves the blog API.
type Handler struct {
	store           *Store
	featuredDefault int
	errDomain       string
}

// NewHandler creates a new Handler.
func NewHandler(store *Store, featuredDefault int, errDomain string) *Handler {
	return &Handler{store: store, featuredDefault: featuredDefault, errDomain: errDomain}
}

// Mount registers GET /blog and GET /blog/{slug}.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/blog", h.List)
	r.Get("/blog/{slug}", h.Get)
}

// List returns all posts or, with the "featured" query parameter, the newest ones.
// "featured" without a value means the configured default count.
func (h *Handler) List(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var posts []*Post
	var err error
	if r.URL.Query().Has("featured") {
		n := h.featuredDefault
		if v := r.URL.Query().Get("featured"); v != "" {
			if n, err = strconv.Atoi(v); err != nil || n <= 0 {
				restapi.RespondError(rw, http.StatusBadRequest, restapi.NewError(h.errDomain, restapi.ErrCodeBadRequest,
					"Query parameter \"featured\" must be a positive integer."), logger)
				return
			}
		}
		posts, err = h.store.Featured(r.Context(), n)
	} else {
		posts, err = h.store.List(r.Context())
	}
	if err != nil {
		logger.Error("error listing blog posts", log.Error(err))
		restapi.RespondInternalError(rw, h.errDomain, logger)
		return
	}

	summaries := make([]*Post, 0, len(posts))
	for _, p := range posts {
		summary := *p
		summary.Content = ""
		summaries = append(summaries, &summary)
	}
	restapi.RespondJSON(rw, ListResponse{Posts: summaries}, logger)
}

// Get returns a single post with its content.
func (h *Handler) Get(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())
	post, err := h.store.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			restapi.RespondError(rw, http.StatusNotFound,
				restapi.NewError(h.errDomain, restapi.ErrCodeNotFound, "Blog post not found."), logger)
			return
		}
		logger.Error("error reading blog post", log.Error(err))
		restapi.RespondInternalError(rw, h.errDomain, logger)
		return
	}
	restapi.RespondJSON(rw, post, logger)
}
