package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/contest-leaderboard/internal/realtime"
	"github.com/riskibarqy/contest-leaderboard/internal/usecase"
)

const maxRequestBodyBytes = 1 << 20

// Subscriber is the live-update registry the stream endpoint attaches to.
type Subscriber interface {
	Subscribe(contestID string) (*realtime.Subscription, error)
	Unsubscribe(contestID, subscriptionID string) bool
}

type Handler struct {
	leaderboards *usecase.LeaderboardService
	subscriber   Subscriber
	logger       *logging.Logger
	validator    *validator.Validate
	upgrader     websocket.Upgrader
	stream       streamConfig
}

func NewHandler(
	leaderboards *usecase.LeaderboardService,
	subscriber Subscriber,
	corsAllowedOrigins []string,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	origins := newOriginPolicy(corsAllowedOrigins)
	return &Handler{
		leaderboards: leaderboards,
		subscriber:   subscriber,
		logger:       logger,
		validator:    validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				return origin == "" || origins.allows(origin)
			},
		},
		stream: defaultStreamConfig(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// decodeJSONBody decodes a bounded request body and rejects unknown fields.
// An empty body leaves out untouched.
func decodeJSONBody(r *http.Request, out any) error {
	decoder := jsoniter.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func contestIDFromPath(r *http.Request) (string, error) {
	contestID := strings.TrimSpace(r.PathValue("contestID"))
	if contestID == "" {
		return "", fmt.Errorf("%w: contest id is required", usecase.ErrInvalidInput)
	}
	return contestID, nil
}

// logFailure logs at warn for expected client and dependency errors and at
// error for everything else.
func (h *Handler) logFailure(ctx context.Context, msg, contestID string, err error) {
	switch mapError(err).HTTPStatus {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized:
		h.logger.InfoContext(ctx, msg, "contest_id", contestID, "error", err)
	case http.StatusServiceUnavailable, http.StatusConflict:
		h.logger.WarnContext(ctx, msg, "contest_id", contestID, "error", err)
	default:
		h.logger.ErrorContext(ctx, msg, "contest_id", contestID, "error", err)
	}
}
