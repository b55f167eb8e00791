package handler

import (
	"context"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"Conquest/internal/game/actor"
	"Conquest/internal/game/actor/messages"
	"Conquest/internal/game/combat"
	"Conquest/internal/game/construction"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/state"
	"Conquest/internal/game/training"
	"Conquest/internal/shared/transport"
	"Conquest/internal/shared/transport/http/middleware"
	"Conquest/internal/shared/transport/ws"
	"Conquest/modules/kit/errx"
	"Conquest/modules/kit/logx"
)

const (
	defaultReportLimit = 10
	maxReportLimit     = 20
	defaultMapLimit    = 100
	maxMapLimit        = 500
)

// TokenIssuer 注册成功后给玩家签发访问令牌。
type TokenIssuer interface {
	Award(playerID int64) (string, time.Time, error)
}

type HttpHandler struct {
	game    *state.GameState
	runtime *actor.Runtime
	tokens  TokenIssuer
	hub     *ws.Hub
	log     logx.Logger
	now     func() time.Time
}

func NewHttpHandler(game *state.GameState, rt *actor.Runtime, tokens TokenIssuer, hub *ws.Hub, l logx.Logger) *HttpHandler {
	if l == nil {
		l = logx.Nop()
	}
	return &HttpHandler{game: game, runtime: rt, tokens: tokens, hub: hub, log: l, now: time.Now}
}

// RegisterRoutes 注册接口只挂 public，其余挂在鉴权之后。
func (h *HttpHandler) RegisterRoutes(group *gin.RouterGroup, authed ...gin.HandlerFunc) {
	v1 := group.Group("/v1")
	v1.POST("/players", h.Register)

	g := v1.Group("", authed...)
	g.GET("/me/profile", h.Profile)
	g.GET("/me/army", h.Army)
	g.GET("/me/reports", h.Reports)
	g.POST("/me/collect", h.Collect)
	g.POST("/me/daily-reward", h.ClaimDaily)
	g.POST("/market/exchange", h.Exchange)
	g.GET("/cities/:city_id", h.City)
	g.POST("/cities/:city_id/upgrades", h.StartUpgrade)
	g.DELETE("/cities/:city_id/upgrades/:building", h.CancelUpgrade)
	g.POST("/cities/:city_id/training", h.StartTraining)
	g.POST("/attacks", h.Attack)
	g.GET("/world/map", h.WorldMap)
	if h.hub != nil {
		g.GET("/players/:player_id/events", h.Events)
	}
}

// Register 按外部账号注册玩家，重复注册返回已有玩家并重新签发令牌。
func (h *HttpHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	pid, created, err := h.game.RegisterPlayer(ctx, req.ExternalID, req.Name, h.now())
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	token, exp, err := h.tokens.Award(int64(pid))
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	status := nethttp.StatusOK
	if created {
		status = nethttp.StatusCreated
	}
	c.JSON(status, Success(RegisterResp{PlayerID: pid, Created: created, Token: token, ExpiresAt: exp}))
}

func (h *HttpHandler) Profile(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	do[state.ProfileView](h, c, &messages.ProfileSnapshot{Base: messages.Base{PlayerID: pid}})
}

func (h *HttpHandler) Army(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	do[state.ArmyView](h, c, &messages.ArmySnapshot{Base: messages.Base{PlayerID: pid}})
}

func (h *HttpHandler) Reports(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	limit, ok := h.intQuery(c, "limit", defaultReportLimit, maxReportLimit)
	if !ok {
		return
	}
	do[[]entity.BattleReport](h, c, &messages.BattleReports{Base: messages.Base{PlayerID: pid}, Limit: limit})
}

func (h *HttpHandler) Collect(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	do[state.CollectResult](h, c, &messages.CollectResources{Base: messages.Base{PlayerID: pid}})
}

func (h *HttpHandler) ClaimDaily(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	do[state.RewardResult](h, c, &messages.ClaimDailyReward{Base: messages.Base{PlayerID: pid}})
}

func (h *HttpHandler) Exchange(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	var req ExchangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	do[state.ExchangeResult](h, c, &messages.Exchange{Base: messages.Base{PlayerID: pid}, To: req.To, Gold: req.Gold})
}

// City cityID 为 0 时返回主城。
func (h *HttpHandler) City(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	cityID, ok := h.cityParam(c)
	if !ok {
		return
	}
	do[state.CityView](h, c, &messages.CitySnapshot{Base: messages.Base{PlayerID: pid}, CityID: cityID})
}

func (h *HttpHandler) StartUpgrade(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	cityID, ok := h.cityParam(c)
	if !ok {
		return
	}
	var req UpgradeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	do[construction.Job](h, c, &messages.StartUpgrade{Base: messages.Base{PlayerID: pid}, CityID: cityID, Building: req.Building})
}

func (h *HttpHandler) CancelUpgrade(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	cityID, ok := h.cityParam(c)
	if !ok {
		return
	}
	building := entity.BuildingType(c.Param("building"))
	refund, err := actor.Ask[entity.Resources](c.Request.Context(), h.runtime,
		&messages.CancelUpgrade{Base: messages.Base{PlayerID: pid}, CityID: cityID, Building: building})
	if err != nil {
		h.error(c.Request.Context(), c, err)
		return
	}
	h.ok(c, gin.H{"refund": refund})
}

func (h *HttpHandler) StartTraining(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	cityID, ok := h.cityParam(c)
	if !ok {
		return
	}
	var req TrainReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	do[training.Ticket](h, c, &messages.StartTraining{
		Base: messages.Base{PlayerID: pid}, CityID: cityID, Unit: req.Unit, Quantity: req.Quantity,
	})
}

func (h *HttpHandler) Attack(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	var req AttackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	do[combat.Result](h, c, &messages.Attack{
		Base: messages.Base{PlayerID: pid}, SourceCity: req.SourceCity, TargetCity: req.TargetCity, Force: req.Force,
	})
}

// WorldMap 只读注册表里不会变化的字段，不经过 actor。
func (h *HttpHandler) WorldMap(c *gin.Context) {
	offset, ok := h.intQuery(c, "offset", 0, -1)
	if !ok {
		return
	}
	limit, ok := h.intQuery(c, "limit", defaultMapLimit, maxMapLimit)
	if !ok {
		return
	}
	cities := h.game.WorldMap(offset, limit)
	if cities == nil {
		cities = []state.MapCity{}
	}
	h.ok(c, gin.H{"cities": cities, "total": h.game.CityCount()})
}

// Events 订阅自己的事件流。
func (h *HttpHandler) Events(c *gin.Context) {
	pid, ok := h.player(c)
	if !ok {
		return
	}
	want, err := strconv.ParseInt(c.Param("player_id"), 10, 64)
	if err != nil || want <= 0 {
		h.fail(c, transport.InvalidParam, "参数有误")
		return
	}
	if entity.PlayerID(want) != pid {
		c.JSON(nethttp.StatusForbidden, Error(transport.Forbidden, "只能订阅自己的事件"))
		return
	}
	if !h.game.HasPlayer(pid) {
		c.JSON(nethttp.StatusNotFound, Error(transport.NotFound, "player not found"))
		return
	}
	h.hub.Serve(c.Writer, c.Request, int64(pid))
}

// do 把命令交给玩家 actor，按类型取回结果并写响应。
func do[T any](h *HttpHandler, c *gin.Context, cmd messages.Command) {
	ctx := c.Request.Context()
	v, err := actor.Ask[T](ctx, h.runtime, cmd)
	if err != nil {
		h.error(ctx, c, err)
		return
	}
	h.ok(c, v)
}

func (h *HttpHandler) player(c *gin.Context) (entity.PlayerID, bool) {
	id, ok := middleware.PlayerID(c)
	if !ok {
		c.AbortWithStatusJSON(nethttp.StatusUnauthorized, Error(transport.Unauthorized, "未登录"))
		return 0, false
	}
	return entity.PlayerID(id), true
}

func (h *HttpHandler) cityParam(c *gin.Context) (entity.CityID, bool) {
	id, err := strconv.ParseInt(c.Param("city_id"), 10, 64)
	if err != nil || id < 0 {
		h.fail(c, transport.InvalidParam, "城市 id 有误")
		return 0, false
	}
	return entity.CityID(id), true
}

// intQuery 缺省取 def；max 小于 0 表示不设上限。
func (h *HttpHandler) intQuery(c *gin.Context, key string, def, max int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		h.fail(c, transport.InvalidParam, key+" 有误")
		return 0, false
	}
	if max >= 0 && v > max {
		v = max
	}
	return v, true
}

func (h *HttpHandler) ok(c *gin.Context, data any) {
	c.JSON(nethttp.StatusOK, Success(data))
}

func (h *HttpHandler) fail(c *gin.Context, code int, msg string) {
	reason := errx.ErrBadRequest.CodeText()
	transport.SetErrorReason(c.Request.Context(), reason)
	resp := Error(code, msg)
	resp.Reason = reason
	c.JSON(nethttp.StatusBadRequest, resp)
}

func (h *HttpHandler) error(ctx context.Context, c *gin.Context, err error) {
	status, resp := HandleError(ctx, h.log, err)
	c.JSON(status, resp)
}
