// Package web exposes the pose engine over HTTP: a JSON API for frame
// management and conversions, a server-sent change stream, and a CZML feed
// for map viewers.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	goutils "go.viam.com/utils"

	"github.com/geekmug/posed"
	"github.com/geekmug/posed/geodesy"
	"github.com/geekmug/posed/spatialmath"
)

// Server serves the posed HTTP surface.
type Server struct {
	service *posed.PoseService
	geoid   geodesy.Geoid
	logger  golog.Logger
	clock   clock.Clock
	handler http.Handler

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	allowedOrigins []string
	gatherer       prometheus.Gatherer
	clock          clock.Clock
}

// WithAllowedOrigins sets the CORS allow-list.
func WithAllowedOrigins(origins []string) Option {
	return func(o *serverOptions) {
		o.allowedOrigins = origins
	}
}

// WithMetricsGatherer mounts /metrics backed by the given gatherer.
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(o *serverOptions) {
		o.gatherer = g
	}
}

// WithClock substitutes the clock driving stream heartbeats, for tests.
func WithClock(c clock.Clock) Option {
	return func(o *serverOptions) {
		o.clock = c
	}
}

// NewServer creates a server around the given service. The geoid is consulted
// only to convert AMSL altitudes supplied by clients.
func NewServer(service *posed.PoseService, geoid geodesy.Geoid, logger golog.Logger, opts ...Option) *Server {
	options := serverOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&options)
	}

	s := &Server{
		service: service,
		geoid:   geoid,
		logger:  logger,
		clock:   options.clock,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/frames", s.handleListFrames)
	mux.HandleFunc("POST /api/frames", s.handleCreateFrame)
	mux.HandleFunc("DELETE /api/frames/{name}", s.handleRemoveFrame)
	mux.HandleFunc("GET /api/frames/{name}/geopose", s.handleGetGeoPose)
	mux.HandleFunc("PUT /api/frames/{name}/geopose", s.handleUpdateGeoPose)
	mux.HandleFunc("POST /api/transform", s.handleTransform)
	mux.HandleFunc("GET /api/changes", s.handleChanges)
	mux.HandleFunc("GET /czml", s.handleCzml)
	if options.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if len(options.allowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: options.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		}).Handler(handler)
	}
	s.handler = handler
	return s
}

// Handler returns the root HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the given address until ctx is canceled.
func (s *Server) Serve(ctx context.Context, bindAddress string) error {
	listener, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", bindAddress)
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var serveErr error
	done := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(done)
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	})
	s.logger.Infow("web server listening", "address", listener.Addr().String())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.httpServer.Shutdown(shutdownCtx)
	<-done
	if serveErr != nil {
		return serveErr
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		// The status line is already committed either way.
		goutils.UncheckedError(json.NewEncoder(w).Encode(v))
	}
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	frames := []FrameJSON{}
	if root := r.URL.Query().Get("root"); root != "" {
		for f := range s.service.TraverseFrom(root) {
			frames = append(frames, frameToJSON(f))
		}
	} else {
		for f := range s.service.Traverse() {
			frames = append(frames, frameToJSON(f))
		}
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) handleCreateFrame(w http.ResponseWriter, r *http.Request) {
	var req CreateFrameJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var err error
	if req.Parent == "" {
		err = s.service.CreateRoot(req.Name)
	} else {
		pose := spatialmath.NewZeroPose()
		if req.Pose != nil {
			pose = poseFromJSON(*req.Pose)
		}
		err = s.service.Create(req.Parent, req.Name, pose)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, frameToJSON(s.service.Get(req.Name)))
}

func (s *Server) handleRemoveFrame(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Remove(r.PathValue("name")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetGeoPose(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	geopose := s.service.Convert(name, spatialmath.NewZeroPose())
	if geopose == nil {
		writeError(w, http.StatusNotFound,
			errors.Errorf("frame %q has no geodetic placement", name))
		return
	}
	writeJSON(w, http.StatusOK, geoPoseToJSON(*geopose, s.geoid))
}

func (s *Server) handleUpdateGeoPose(w http.ResponseWriter, r *http.Request) {
	var req GeoPoseJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	geopose, err := geoPoseFromJSON(req, s.geoid)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.Update(r.PathValue("name"), geopose); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transformRequestJSON struct {
	Src  string    `json:"src"`
	Dst  string    `json:"dst"`
	Pose *PoseJSON `json:"pose,omitempty"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pose := spatialmath.NewZeroPose()
	if req.Pose != nil {
		pose = poseFromJSON(*req.Pose)
	}
	result := s.service.Transform(req.Src, req.Dst, pose)
	if result == nil {
		writeError(w, http.StatusNotFound,
			errors.Errorf("no transform from %q to %q", req.Src, req.Dst))
		return
	}
	writeJSON(w, http.StatusOK, poseToJSON(*result))
}
