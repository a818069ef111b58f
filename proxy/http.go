package proxy

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// requestTimeout bounds how long HandleRequest may take end to end,
// matching networks/rpc/http.go's defaultHTTPTimeouts shape.
const requestTimeout = 15 * time.Second

// NewHTTPHandler builds the inbound net/http handler: httprouter for
// method/path dispatch and rs/cors for preflight handling, wrapping
// Service.HandleRequest per spec.md §4.6's public contract.
func NewHTTPHandler(svc *Service) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveProxy(svc, w, r)
	})
	router.HandleMethodNotAllowed = false

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(router)
}

func serveProxy(svc *Service, w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.GenerateUUID()
	if err != nil {
		requestID = ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp := svc.HandleRequest(ctx, InboundRequest{
		Method:        r.Method,
		Headers:       r.Header,
		Body:          body,
		Path:          r.URL.Path,
		PathWithQuery: r.URL.RequestURI(),
		Host:          r.Host,
		UserAgent:     r.UserAgent(),
	})

	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
