package routes

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/gateway/httpclient"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ServiceProxy forwards dashboard traffic to the domain services. Bodies
// stream straight through, so a 500MB call recording never buffers in
// the gateway.
type ServiceProxy struct {
	client *http.Client
	cfg    *config.Config
}

func NewServiceProxy(client *http.Client, cfg *config.Config) *ServiceProxy {
	return &ServiceProxy{client: client, cfg: cfg}
}

// Register mounts one path family per upstream. The router passed in is
// already behind Authenticate and OrgScope, so every forwarded request
// carries the verified tenant headers.
func (p *ServiceProxy) Register(r *mux.Router) {
	if p.client == nil || p.cfg == nil {
		panic("service proxy requires client and config")
	}

	p.mount(r, "/calls", p.cfg.CallServiceURL)
	p.mount(r, "/loads", p.cfg.LoadServiceURL)
	p.mount(r, "/carriers", p.cfg.CarrierServiceURL)
	p.mount(r, "/shippers", p.cfg.CarrierServiceURL)
	p.mount(r, "/analytics", p.cfg.AnalyticsServiceURL)
}

func (p *ServiceProxy) mount(r *mux.Router, prefix, base string) {
	base = strings.TrimRight(base, "/")
	r.PathPrefix(prefix).Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		p.forward(w, req, base)
	}))
}

func (p *ServiceProxy) forward(w http.ResponseWriter, r *http.Request, base string) {
	target := base + r.URL.Path
	if r.URL.RawQuery != "" {
		target = target + "?" + r.URL.RawQuery
	}

	ctx := r.Context()
	hasBody := r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodDelete

	// Uploads stream at the client's pace; the flat gateway timeout only
	// guards the JSON round trips.
	if !isMultipart(r) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.GatewayRequestTimeout)
		defer cancel()
	}

	var body io.Reader
	if hasBody {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		http.Error(w, "failed to build upstream request", http.StatusInternalServerError)
		return
	}
	copyHeaders(r, req, hasBody)
	corrID := ensureCorrelationID(req)

	var resp *http.Response
	if hasBody {
		// A consumed body cannot be replayed, so no retry here.
		resp, err = p.client.Do(req)
	} else {
		var permanent error
		err = httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
			var doErr error
			resp, doErr = p.client.Do(req)
			if doErr != nil && !httpclient.IsRetriable(doErr) {
				// TLS or DNS failures will not clear in 200ms.
				permanent = doErr
				return nil
			}
			return doErr
		})
		if err == nil {
			err = permanent
		}
	}
	if err != nil {
		logger.Log.WithError(err).WithField("url", target).Error("proxy request failed")
		http.Error(w, "upstream service unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		for _, value := range v {
			w.Header().Add(k, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Log.WithError(err).Error("failed to copy upstream response")
	}

	logger.Log.WithFields(map[string]interface{}{
		"url":        target,
		"status":     resp.StatusCode,
		"request_id": corrID,
	}).Info("Forwarded request")
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

func copyHeaders(src *http.Request, dst *http.Request, hasBody bool) {
	dst.Header = make(http.Header)
	for k, v := range src.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		dst.Header[k] = append([]string(nil), v...)
	}
	if hasBody {
		if ctype := src.Header.Get("Content-Type"); ctype != "" {
			dst.Header.Set("Content-Type", ctype)
		} else {
			dst.Header.Set("Content-Type", "application/json")
		}
	}
}

func ensureCorrelationID(req *http.Request) string {
	corrID := req.Header.Get("X-Request-ID")
	if corrID == "" {
		corrID = uuid.New().String()
		req.Header.Set("X-Request-ID", corrID)
	}
	return corrID
}
