package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"Conquest/internal/game/errs"
)

func TestObserver_按结果分类计数(t *testing.T) {
	o := New()
	o.CommandDone("exchange", nil, time.Millisecond)
	o.CommandDone("exchange", errs.ErrInsufficientResources, time.Millisecond)
	o.CommandDone("exchange", errors.New("boom"), time.Millisecond)
	o.CommandDone("exchange", nil, time.Millisecond)

	if got := testutil.ToFloat64(o.commands.WithLabelValues("exchange", "ok")); got != 2 {
		t.Fatalf("ok=%v", got)
	}
	if got := testutil.ToFloat64(o.commands.WithLabelValues("exchange", "rejected")); got != 1 {
		t.Fatalf("rejected=%v", got)
	}
	if got := testutil.ToFloat64(o.commands.WithLabelValues("exchange", "error")); got != 1 {
		t.Fatalf("error=%v", got)
	}
}

func TestObserver_战斗玩家与落库(t *testing.T) {
	o := New()
	o.BattleResolved(true)
	o.BattleResolved(false)
	o.BattleResolved(true)
	o.PlayersRegistered(12)
	o.FlushDone(3, nil, 2*time.Millisecond)
	o.FlushDone(3, errs.ErrPersistence, time.Millisecond)

	if got := testutil.ToFloat64(o.battles.WithLabelValues("attacker")); got != 2 {
		t.Fatalf("attacker wins=%v", got)
	}
	if got := testutil.ToFloat64(o.players); got != 12 {
		t.Fatalf("players=%v", got)
	}
	if got := testutil.ToFloat64(o.flushes.WithLabelValues("error")); got != 1 {
		t.Fatalf("flush errors=%v", got)
	}
}

func TestObserver_Handler输出指标(t *testing.T) {
	o := New()
	o.TimerApplied("construction")

	w := httptest.NewRecorder()
	o.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `conquest_timers_applied_total{kind="construction"} 1`) {
		t.Fatalf("期望输出计时器指标, body=%s", w.Body.String())
	}
}
