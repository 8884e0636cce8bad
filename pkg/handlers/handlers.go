package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	apperrors "github.com/LingByte/TutorConnect/pkg/errors"
	"github.com/LingByte/TutorConnect/pkg/models"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	"github.com/LingByte/TutorConnect/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mssola/user_agent"
	"github.com/patrickmn/go-cache"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const roomsCacheKey = "signaling:rooms"

// CallStore is the read side of the call record store.
type CallStore interface {
	Recent(ctx context.Context, room string, limit int) ([]models.CallRecord, error)
}

type Options struct {
	Hub            *signaling.Hub
	Calls          CallStore
	ICEServers     []webrtc.ICEServer
	Cache          *cache.Cache
	CacheTTL       time.Duration
	AllowedOrigins []string
	ReadBuffer     int
	WriteBuffer    int
	Client         signaling.ClientOptions
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
}

// Handlers serves the websocket endpoint and the REST API.
type Handlers struct {
	hub        *signaling.Hub
	calls      CallStore
	iceServers []webrtc.ICEServer
	cache      *cache.Cache
	cacheTTL   time.Duration
	origins    originSet
	upgrader   websocket.Upgrader
	clientOpts signaling.ClientOptions
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	started    time.Time
}

func New(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = utils.GlobalCache()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = constants.DefaultStatsCacheTTL
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = constants.DefaultReadBuffer
	}
	if opts.WriteBuffer <= 0 {
		opts.WriteBuffer = constants.DefaultWriteBuffer
	}

	h := &Handlers{
		hub:        opts.Hub,
		calls:      opts.Calls,
		iceServers: opts.ICEServers,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		origins:    newOriginSet(opts.AllowedOrigins),
		clientOpts: opts.Client,
		gatherer:   opts.Gatherer,
		logger:     opts.Logger,
		started:    time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBuffer,
		WriteBufferSize: opts.WriteBuffer,
		CheckOrigin: func(r *http.Request) bool {
			return h.origins.allows(r.Header.Get("Origin"))
		},
	}
	return h
}

// Register mounts every route on r.
func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/ws", h.ServeWS)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(CORS(h.origins))
	{
		api.GET("/health", h.Health)
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:id", h.GetRoom)
		api.GET("/ice-servers", h.ICEServers)
		api.GET("/calls", h.ListCalls)
		// preflight requests are answered by the CORS middleware
		api.OPTIONS("/*path", func(*gin.Context) {})
	}
}

// ServeWS upgrades the request and hands the socket to the hub.
func (h *Handlers) ServeWS(c *gin.Context) {
	ua := user_agent.New(c.Request.UserAgent())
	browser, version := ua.Browser()
	fields := []zap.Field{
		zap.String("remote", c.ClientIP()),
		zap.String("browser", browser),
		zap.String("browser_version", version),
		zap.String("os", ua.OS()),
		zap.Bool("bot", ua.Bot()),
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.logger.Warn("websocket upgrade failed", append(fields, zap.Error(err))...)
		return
	}

	client, err := signaling.Serve(c.Request.Context(), h.hub, conn, h.clientOpts)
	if err != nil {
		h.logger.Warn("websocket register failed", append(fields, zap.Error(err))...)
		return
	}
	h.logger.Info("websocket connected", append(fields, zap.String("connection", client.ID()))...)
}

func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			body["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			body["cpu_percent"] = cpu
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) ListRooms(c *gin.Context) {
	snap, err := h.snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, signaling.ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) GetRoom(c *gin.Context) {
	snap, err := h.snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, signaling.ToAppError(err))
		return
	}
	room, ok := snap.Room(c.Param("id"))
	if !ok {
		abortWithError(c, signaling.ErrRoomNotFoundApp.WithDetails("room", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handlers) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

func (h *Handlers) ListCalls(c *gin.Context) {
	if h.calls == nil {
		abortWithError(c, apperrors.NewAppError(apperrors.ErrCodeUnavailable, "Call records are disabled"))
		return
	}
	limit := cast.ToInt(c.Query("limit"))
	if limit < 0 {
		abortWithError(c, apperrors.NewAppError(apperrors.ErrCodeInvalidInput, "limit must not be negative").WithDetails("field", "limit"))
		return
	}
	recs, err := h.calls.Recent(c.Request.Context(), c.Query("room"), limit)
	if err != nil {
		h.logger.Error("list call records", zap.Error(err))
		abortWithError(c, apperrors.WrapError(apperrors.ErrCodeStorage, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

// snapshot reads the room table through the hub, cached for cacheTTL.
func (h *Handlers) snapshot(ctx context.Context) (signaling.Snapshot, error) {
	if v, ok := h.cache.Get(roomsCacheKey); ok {
		return v.(signaling.Snapshot), nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	snap, err := h.hub.Snapshot(ctx)
	if err != nil {
		return signaling.Snapshot{}, err
	}
	h.cache.Set(roomsCacheKey, snap, h.cacheTTL)
	return snap, nil
}

func abortWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.WrapError(apperrors.ErrCodeInternal, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		appErr = apperrors.NewAppError(apperrors.ErrCodeUnavailable, "Signaling hub is busy").WithCause(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}
