package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"Conquest/internal/game/actor"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/state"
	"Conquest/internal/shared/gameconfig"
	"Conquest/internal/shared/security"
	"Conquest/internal/shared/transport"
	"Conquest/internal/shared/transport/http/middleware"
	"Conquest/modules/kit/errx"
	"Conquest/modules/kit/logx"
)

var t0 = time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine *gin.Engine
	game   *state.GameState
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	game := state.New(gameconfig.MustDefault())
	rt := actor.NewRuntime(game, actor.WithClock(func() time.Time { return t0 }), actor.WithSweep(0, 0))
	t.Cleanup(rt.Shutdown)

	issuer, err := security.NewIssuer(security.Settings{Secret: "test", TokenTTL: time.Hour, Issuer: "conquest"})
	if err != nil {
		t.Fatalf("NewIssuer err=%v", err)
	}
	h := NewHttpHandler(game, rt, issuer, nil, logx.Nop())
	h.now = func() time.Time { return t0 }

	engine := gin.New()
	h.RegisterRoutes(engine.Group(""), middleware.Auth(issuer))
	return &fixture{engine: engine, game: game}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: unmarshal err=%v body=%s", method, path, err, w.Body.String())
	}
	return w.Code, resp
}

func (f *fixture) register(t *testing.T, externalID string) (entity.PlayerID, string) {
	t.Helper()
	status, resp := f.do(t, nethttp.MethodPost, "/v1/players", "", RegisterReq{ExternalID: externalID, Name: "lord " + externalID})
	if status != nethttp.StatusCreated || resp.Code != transport.OK {
		t.Fatalf("register status=%d resp=%+v", status, resp)
	}
	data := resp.Data.(map[string]any)
	return entity.PlayerID(int64(data["player_id"].(float64))), data["token"].(string)
}

func TestRegister_重复注册返回已有玩家(t *testing.T) {
	f := newFixture(t)
	id, _ := f.register(t, "tg:1")

	status, resp := f.do(t, nethttp.MethodPost, "/v1/players", "", RegisterReq{ExternalID: "tg:1", Name: "again"})
	if status != nethttp.StatusOK {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
	data := resp.Data.(map[string]any)
	if entity.PlayerID(int64(data["player_id"].(float64))) != id || data["created"] != false {
		t.Fatalf("期望返回已有玩家, got=%v", data)
	}

	status, resp = f.do(t, nethttp.MethodPost, "/v1/players", "", map[string]string{"name": "x"})
	if status != nethttp.StatusBadRequest || resp.Code != transport.InvalidParam {
		t.Fatalf("期望缺少 external_id 时 400, status=%d resp=%+v", status, resp)
	}
}

func TestHttp_未登录访问被拒绝(t *testing.T) {
	f := newFixture(t)
	status, resp := f.do(t, nethttp.MethodGet, "/v1/me/profile", "", nil)
	if status != nethttp.StatusUnauthorized || resp.Code != transport.Unauthorized {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
}

func TestHttp_升级与冲突映射(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "tg:2")

	status, resp := f.do(t, nethttp.MethodPost, "/v1/cities/0/upgrades", token, UpgradeReq{Building: entity.Farm})
	if status != nethttp.StatusOK {
		t.Fatalf("start upgrade status=%d resp=%+v", status, resp)
	}
	job := resp.Data.(map[string]any)
	if job["building"] != string(entity.Farm) || job["target_level"] != float64(2) {
		t.Fatalf("unexpected job: %v", job)
	}

	status, resp = f.do(t, nethttp.MethodPost, "/v1/cities/0/upgrades", token, UpgradeReq{Building: entity.Farm})
	if status != nethttp.StatusConflict || resp.Code != transport.Conflict || resp.Reason != string(errs.CodeAlreadyUnderConstruction) {
		t.Fatalf("期望 409 建造中, status=%d resp=%+v", status, resp)
	}

	status, resp = f.do(t, nethttp.MethodDelete, "/v1/cities/0/upgrades/farm", token, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("cancel status=%d resp=%+v", status, resp)
	}
	refund := resp.Data.(map[string]any)["refund"].(map[string]any)
	if refund["gold"].(float64) <= 0 {
		t.Fatalf("期望取消后退款, got=%v", refund)
	}
}

func TestHttp_他人城市与资源不足(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "tg:3")
	other, _ := f.register(t, "tg:4")

	snap, err := f.game.Snapshot(other)
	if err != nil {
		t.Fatalf("snapshot err=%v", err)
	}
	otherCity := strconv.FormatInt(int64(snap.Cities[0].ID), 10)

	status, resp := f.do(t, nethttp.MethodGet, "/v1/cities/"+otherCity, token, nil)
	if status != nethttp.StatusForbidden || resp.Code != transport.Forbidden {
		t.Fatalf("期望 403, status=%d resp=%+v", status, resp)
	}

	status, resp = f.do(t, nethttp.MethodGet, "/v1/cities/999999", token, nil)
	if status != nethttp.StatusNotFound || resp.Code != transport.NotFound {
		t.Fatalf("期望 404, status=%d resp=%+v", status, resp)
	}

	status, resp = f.do(t, nethttp.MethodPost, "/v1/market/exchange", token, ExchangeReq{To: entity.Food, Gold: 1_000_000})
	if status != nethttp.StatusUnprocessableEntity || resp.Code != transport.InsufficientResources {
		t.Fatalf("期望 422, status=%d resp=%+v", status, resp)
	}
	if resp.Details["shortfall"] == nil {
		t.Fatalf("期望返回缺口明细, got=%v", resp.Details)
	}
}

func TestHttp_世界地图分页(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "tg:5")
	f.register(t, "tg:6")

	status, resp := f.do(t, nethttp.MethodGet, "/v1/world/map?limit=1", token, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
	data := resp.Data.(map[string]any)
	if len(data["cities"].([]any)) != 1 || data["total"] != float64(2) {
		t.Fatalf("unexpected map page: %v", data)
	}
}

func TestHandleError_映射(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"运行时", &actor.RuntimeError{Message: "timeout"}, nethttp.StatusServiceUnavailable, transport.Unavailable},
		{"超时", context.DeadlineExceeded, nethttp.StatusServiceUnavailable, transport.Unavailable},
		{"未知错误", errors.New("boom"), nethttp.StatusInternalServerError, transport.SystemError},
		{"故障", errs.Fault("x", nil, nil), nethttp.StatusInternalServerError, transport.SystemError},
		{"城市不存在", errs.ErrCityNotFound, nethttp.StatusNotFound, transport.NotFound},
		{"非城主", errs.ErrNotCityOwner, nethttp.StatusForbidden, transport.Forbidden},
		{"参数", errs.Invalid("bad"), nethttp.StatusBadRequest, transport.InvalidParam},
		{"冷却", errs.ErrTargetOnCooldown, nethttp.StatusConflict, transport.Conflict},
		{"兵力不足", errs.ErrInsufficientForces, nethttp.StatusUnprocessableEntity, transport.InsufficientResources},
	}
	for _, tc := range cases {
		status, resp := HandleError(ctx, logx.Nop(), tc.err)
		if status != tc.status || resp.Code != tc.code {
			t.Fatalf("%s: status=%d code=%d want %d/%d", tc.name, status, resp.Code, tc.status, tc.code)
		}
	}
	if _, resp := HandleError(ctx, logx.Nop(), context.DeadlineExceeded); resp.Reason != errx.ErrTimeout.CodeText() {
		t.Fatalf("timeout reason=%q", resp.Reason)
	}
}
