package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ghbridge/internal"
	"ghbridge/pkg/delivery"
	"ghbridge/pkg/notify"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
)

// Response messages.
const (
	msgOK              = "OK"
	msgUsePOST         = "Bad Request: Please use POST method"
	msgInvalidBody     = "Bad Request: Invalid body"
	msgInvalidSig      = "Bad Request: Invalid X-Hub-Signature"
	msgInvalidEvent    = "Bad Request: Invalid X-GitHub-Event"
	msgUnknownEvent    = "Bad Request: Invalid event"
	msgInvalidURL      = "Bad Request: Invalid url"
	msgMuted           = "Muted user"
	msgNotImplemented  = "Method not implemented"
	msgDisabled        = "Disabled event"
	msgIgnored         = "Ignored event"
	msgIgnoredRepo     = "Ignored repository"
	msgNoNotification  = "No notification"
	msgTooLarge        = "Request Entity Too Large"
	msgErrorPrefix     = "An error occurred: "
	errNoDiscordTarget = "no discord webhook configured"
)

// Refresher reloads identity data that may have gone stale.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// MuteChecker is the mute list consulted before routing.
type MuteChecker interface {
	Refresher
	IsMuted(userID int64, event string, action *string) bool
}

// Options wires a GitHubHandler. Only Secret, Dispatcher and one of
// Deliverer or Override are required.
type Options struct {
	Secret     string
	Users      Refresher
	Mutes      MuteChecker
	Mentioner  *notify.Mentioner
	Dispatcher *notify.Dispatcher
	Deliverer  notify.Deliverer
	// Override builds a deliverer for the ?url= query parameter.
	Override func(webhookURL string) (notify.Deliverer, error)

	Rules        *internal.RuleEngine
	Ignore       *internal.Filter
	Publisher    internal.Publisher
	Audit        internal.AuditConfig
	Repositories internal.RepoFilter

	DisabledEvents []string
	MaxBodyBytes   int64
	Now            func() time.Time
	Logger         *zerolog.Logger
}

// GitHubHandler turns GitHub webhook deliveries into Discord notifications.
type GitHubHandler struct {
	secret     []byte
	users      Refresher
	mutes      MuteChecker
	mentioner  *notify.Mentioner
	dispatcher *notify.Dispatcher
	deliverer  notify.Deliverer
	override   func(string) (notify.Deliverer, error)
	rules      *internal.RuleEngine
	ignore     *internal.Filter
	publisher  internal.Publisher
	audit      internal.AuditConfig
	include    map[string]struct{}
	exclude    map[string]struct{}
	disabled   map[string]struct{}
	maxBody    int64
	now        func() time.Time
	logger     zerolog.Logger
}

func NewGitHubHandler(opts Options) (*GitHubHandler, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	h := &GitHubHandler{
		secret:     []byte(opts.Secret),
		users:      opts.Users,
		mutes:      opts.Mutes,
		mentioner:  opts.Mentioner,
		dispatcher: opts.Dispatcher,
		deliverer:  opts.Deliverer,
		override:   opts.Override,
		rules:      opts.Rules,
		ignore:     opts.Ignore,
		publisher:  opts.Publisher,
		audit:      opts.Audit,
		include:    setOf(opts.Repositories.Include),
		exclude:    setOf(opts.Repositories.Exclude),
		disabled:   setOf(opts.DisabledEvents),
		maxBody:    opts.MaxBodyBytes,
		now:        opts.Now,
		logger:     zerolog.Nop(),
	}
	if opts.Logger != nil {
		h.logger = *opts.Logger
	}
	if h.now == nil {
		h.now = time.Now
	}
	if len(h.secret) == 0 {
		h.logger.Warn().Msg("github webhook secret is empty, every delivery will be rejected")
	}
	return h, nil
}

func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		internal.IncRejected("method")
		writeMessage(w, http.StatusBadRequest, msgUsePOST)
		return
	}

	rawBody, status, err := h.readBody(w, r)
	if err != nil {
		internal.IncRejected("body")
		h.logger.Debug().Err(err).Msg("read body failed")
		if status == http.StatusRequestEntityTooLarge {
			writeMessage(w, status, msgTooLarge)
			return
		}
		writeMessage(w, status, msgInvalidBody)
		return
	}

	if !VerifySignature(h.secret, rawBody, signatureHeader(r)) {
		internal.IncRejected("signature")
		writeMessage(w, http.StatusBadRequest, msgInvalidSig)
		return
	}

	eventName := strings.TrimSpace(github.WebHookType(r))
	if eventName == "" {
		internal.IncRejected("event_header")
		writeMessage(w, http.StatusBadRequest, msgInvalidEvent)
		return
	}
	internal.IncRequest(eventName)

	if h.isDisabled(r, eventName) {
		internal.IncSkipped("disabled")
		writeMessage(w, http.StatusAccepted, msgDisabled)
		return
	}

	event, err := internal.NewEvent(eventName, github.DeliveryID(r), rawBody)
	if err != nil {
		internal.IncRejected("json")
		h.logger.Debug().Err(err).Str("event", eventName).Msg("decode payload failed")
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	logger := h.logger.With().
		Str("event", eventName).
		Str("action", event.Action).
		Str("delivery", event.Delivery).
		Str("repository", event.Repository).
		Logger()

	if !h.repositoryAllowed(event.Repository) {
		internal.IncSkipped("repository")
		writeMessage(w, http.StatusAccepted, msgIgnoredRepo)
		return
	}
	if expr, ok := h.ignore.Match(event); ok {
		internal.IncSkipped("ignore")
		logger.Debug().Str("when", expr).Msg("event ignored")
		writeMessage(w, http.StatusAccepted, msgIgnored)
		return
	}

	h.emit(r.Context(), event, logger)

	if h.isMuted(r.Context(), event, logger) {
		internal.IncMuted(eventName)
		writeMessage(w, http.StatusOK, msgMuted)
		return
	}

	handler, err := notify.Route(eventName)
	if err != nil {
		internal.IncRejected("unsupported_event")
		logger.Info().Msg("unsupported event")
		writeMessage(w, http.StatusBadRequest, msgUnknownEvent)
		return
	}

	h.refreshUsers(r.Context(), logger)
	hc := &notify.Context{Event: eventName, Mentioner: h.mentioner, Now: h.now}
	notification, err := handler(r.Context(), hc, rawBody)
	switch {
	case errors.Is(err, notify.ErrNotImplemented):
		logger.Info().Err(err).Msg("action not implemented")
		writeMessage(w, http.StatusNotAcceptable, msgNotImplemented)
		return
	case errors.Is(err, notify.ErrInvalidPayload):
		internal.IncRejected("payload")
		logger.Warn().Err(err).Msg("payload does not match event schema")
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	case err != nil:
		logger.Error().Err(err).Msg("handler failed")
		writeMessage(w, http.StatusInternalServerError, msgErrorPrefix+err.Error())
		return
	}
	if notification == nil {
		internal.IncNotification("noop")
		writeMessage(w, http.StatusOK, msgNoNotification)
		return
	}

	deliverer, err := h.delivererFor(r)
	if err != nil {
		internal.IncRejected("url")
		logger.Debug().Err(err).Msg("invalid webhook override")
		writeMessage(w, http.StatusBadRequest, msgInvalidURL)
		return
	}
	if deliverer == nil {
		writeMessage(w, http.StatusInternalServerError, msgErrorPrefix+errNoDiscordTarget)
		return
	}

	result, err := h.dispatcher.Send(r.Context(), deliverer, notification.Key, notification.Message)
	if err != nil {
		logger.Error().Err(err).Str("key", notification.Key).Msg("delivery failed")
		var deliveryErr *delivery.DeliveryError
		if errors.As(err, &deliveryErr) {
			internal.IncDeliveryError(deliveryErr.Method)
			writeJSON(w, http.StatusInternalServerError, response{
				Message: msgErrorPrefix + err.Error(),
				Error:   deliveryErr,
			})
			return
		}
		internal.IncDeliveryError("dispatch")
		writeMessage(w, http.StatusInternalServerError, msgErrorPrefix+err.Error())
		return
	}
	internal.IncNotification(string(result.Operation))
	logger.Info().
		Str("key", notification.Key).
		Str("operation", string(result.Operation)).
		Str("message_id", result.MessageID).
		Msg("notification delivered")
	writeMessage(w, http.StatusOK, msgOK)
}

func (h *GitHubHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}
	if len(rawBody) == 0 {
		return nil, http.StatusBadRequest, errors.New("empty body")
	}
	return rawBody, http.StatusOK, nil
}

func (h *GitHubHandler) isDisabled(r *http.Request, event string) bool {
	if _, ok := h.disabled[event]; ok {
		return true
	}
	for _, name := range strings.Split(r.URL.Query().Get("disabled"), ",") {
		if strings.TrimSpace(name) == event {
			return true
		}
	}
	return false
}

// repositoryAllowed applies the include and exclude lists. Events without a
// repository, such as organization events, are never filtered.
func (h *GitHubHandler) repositoryAllowed(repo string) bool {
	if repo == "" {
		return true
	}
	repo = strings.ToLower(repo)
	if _, ok := h.exclude[repo]; ok {
		return false
	}
	if len(h.include) == 0 {
		return true
	}
	_, ok := h.include[repo]
	return ok
}

// emit publishes the audit record and every matching rule topic. Publish
// failures are logged and never fail the delivery.
func (h *GitHubHandler) emit(ctx context.Context, event internal.Event, logger zerolog.Logger) {
	if h.publisher == nil {
		return
	}
	if h.audit.Enabled {
		if err := h.publisher.PublishForDrivers(ctx, h.audit.Topic, event, h.audit.Drivers); err != nil {
			logger.Warn().Err(err).Str("topic", h.audit.Topic).Msg("audit publish failed")
		}
	}
	for _, match := range h.rules.Evaluate(event) {
		if err := h.publisher.PublishForDrivers(ctx, match.Topic, event, match.Drivers); err != nil {
			logger.Warn().Err(err).Str("topic", match.Topic).Msg("rule publish failed")
		}
	}
}

func (h *GitHubHandler) isMuted(ctx context.Context, event internal.Event, logger zerolog.Logger) bool {
	if h.mutes == nil || event.SenderID == 0 {
		return false
	}
	if err := h.mutes.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("mute list refresh failed")
	}
	var action *string
	if value, ok := event.Data["action"].(string); ok {
		action = &value
	}
	return h.mutes.IsMuted(event.SenderID, event.Name, action)
}

func (h *GitHubHandler) refreshUsers(ctx context.Context, logger zerolog.Logger) {
	if h.users == nil {
		return
	}
	if err := h.users.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("user map refresh failed")
	}
}

func (h *GitHubHandler) delivererFor(r *http.Request) (notify.Deliverer, error) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" || h.override == nil {
		return h.deliverer, nil
	}
	return h.override(target)
}

// response is the body of every reply. Error is set only for failed
// Discord calls.
type response struct {
	Message string                  `json:"message"`
	Error   *delivery.DeliveryError `json:"error,omitempty"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func setOf(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[strings.ToLower(value)] = struct{}{}
	}
	return out
}
