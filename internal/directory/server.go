package directory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sealroom/internal/domain"
	"sealroom/internal/platform/ratelimiter"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

const maxBody = 1 << 20

// ServerOptions configures a Server. Zero values are usable.
type ServerOptions struct {
	Logger *slog.Logger
	// Limiter is applied per caller; nil disables limiting.
	Limiter *ratelimiter.MapLimiter
	// Registry receives the directory metrics; nil means a private registry.
	Registry *prometheus.Registry
}

// Server serves the directory API over HTTP.
type Server struct {
	store   Store
	log     *slog.Logger
	limiter *ratelimiter.MapLimiter
	metrics *Metrics
	router  *mux.Router
	now     func() time.Time
}

// NewServer builds the router over store.
func NewServer(store Store, opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		store:   store,
		log:     log,
		limiter: opts.Limiter,
		metrics: NewMetrics(reg),
		router:  mux.NewRouter(),
		now:     time.Now,
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.observe, s.rateLimit)
	api.HandleFunc("/identity/{user}", s.putIdentity).Methods(http.MethodPut)
	api.HandleFunc("/prekey/{user}", s.putPrekey).Methods(http.MethodPut)
	api.HandleFunc("/prekey/{user}", s.getPrekeyBundle).Methods(http.MethodGet)
	api.HandleFunc("/channels/{channel}/members", s.putMembers).Methods(http.MethodPut)
	api.HandleFunc("/channels/{channel}/members", s.getMembers).Methods(http.MethodGet)
	api.HandleFunc("/channels/{channel}/shares", s.postShares).Methods(http.MethodPost)
	api.HandleFunc("/channels/{channel}/shares/me", s.getOwnShare).Methods(http.MethodGet)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) putIdentity(w http.ResponseWriter, r *http.Request) {
	user, ok := s.ownPath(w, r)
	if !ok {
		return
	}
	var bundle domain.PublicKeyBundle
	if !s.decode(w, r, &bundle) {
		return
	}
	if bundle.IdentityPublicKey.IsZero() {
		writeError(w, domain.NewError(domain.KindInvalidArgument, "identity public key is required"))
		return
	}
	if err := s.store.PutIdentity(r.Context(), user, bundle); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putPrekey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.ownPath(w, r)
	if !ok {
		return
	}
	var prekey domain.SignedPrekey
	if !s.decode(w, r, &prekey) {
		return
	}
	if err := s.store.PutPrekey(r.Context(), user, prekey); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPrekeyBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.store.PrekeyBundle(r.Context(), domain.UserID(mux.Vars(r)["user"]))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

type membersBody struct {
	Members []domain.UserID `json:"members"`
}

func (s *Server) putMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	var body membersBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.store.PutMembers(r.Context(), domain.ChannelID(mux.Vars(r)["channel"]), body.Members); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.Members(r.Context(), domain.ChannelID(mux.Vars(r)["channel"]))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) postShares(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	var shares []domain.ChannelKeyShare
	if !s.decode(w, r, &shares) {
		return
	}
	channel := domain.ChannelID(mux.Vars(r)["channel"])
	if err := s.store.PutShares(r.Context(), channel, shares); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("channel shares stored", "channel_id", channel.String(), "count", len(shares))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getOwnShare(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, domain.NewError(domain.KindInvalidArgument, "version must be a positive integer"))
			return
		}
		version = n
	}
	share, err := s.store.Share(r.Context(), domain.ChannelID(mux.Vars(r)["channel"]), user, version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	user := r.Header.Get(UserHeader)
	if user == "" {
		writeError(w, domain.NewError(domain.KindInvalidArgument, UserHeader+" header is required"))
		return "", false
	}
	return domain.UserID(user), true
}

// ownPath checks that the caller writes only under its own user id.
func (s *Server) ownPath(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	user, ok := s.caller(w, r)
	if !ok {
		return "", false
	}
	if string(user) != mux.Vars(r)["user"] {
		writeError(w, errForbidden)
		return "", false
	}
	return user, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, domain.Wrap(domain.KindInvalidArgument, "invalid request body", err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeError(w, err); status >= http.StatusInternalServerError {
		s.log.Error("directory request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe logs and records metrics for every API request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := s.now().Sub(start)
		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		s.metrics.duration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
		s.log.Debug("request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
			"user_id", r.Header.Get(UserHeader),
		)
	})
}

// rateLimit applies the per-caller limiter, keyed by user id or remote host.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(UserHeader)
		if key == "" {
			key, _, _ = net.SplitHostPort(r.RemoteAddr)
		}
		if ok, wait := s.limiter.Take(key, s.now()); !ok {
			s.metrics.limited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Kind: domain.KindUnknown, Message: "rate limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds wait up to whole seconds, at least one.
func retryAfterSeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
