package game

import (
	"context"
	"testing"

	"arcade/internal/ledger"
)

type rouletteHarness struct {
	engine *RouletteEngine
	sched  *fakeScheduler
	hub    *recorder
	store  *ledger.Memory
	clock  *fakeClock
}

// drawFor is a uniform draw that lands on symbol.
func drawFor(symbol string) float64 {
	for i, s := range Wheel {
		if s == symbol {
			return (float64(i) + 0.5) / float64(len(Wheel))
		}
	}
	panic("symbol not on wheel: " + symbol)
}

func newRouletteHarness(symbol string) *rouletteHarness {
	h := &rouletteHarness{
		sched: &fakeScheduler{},
		hub:   &recorder{},
		store: ledger.NewMemory(100),
		clock: newFakeClock(),
	}
	h.engine = NewRouletteEngine(testRouletteConfig(), h.sched, h.hub, h.store)
	h.engine.now = h.clock.now
	h.engine.seeds = seeded(drawFor(symbol))
	h.store.SetBalance("u1", 1000)
	h.store.SetBalance("u2", 1000)
	return h
}

func (h *rouletteHarness) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := h.store.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance(%s) error: %v", userID, err)
	}
	return b
}

func (h *rouletteHarness) spin() {
	h.sched.ticks(testRouletteConfig().BettingSeconds)
}

func TestRouletteEngine_ColorBetScenario(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		wantPayout  int64
		wantBalance int64
	}{
		{"black on 2", "2", 100, 1050},
		{"black on 0", "0", 0, 950},
		{"black on 00", "00", 0, 950},
		{"black on red 1", "1", 0, 950},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouletteHarness(tt.symbol)
			h.engine.Start()

			h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
			h.sched.flush()
			if got := h.balance(t, "u1"); got != 950 {
				t.Fatalf("balance after bet = %d, want 950", got)
			}

			h.spin()
			if h.engine.round.Phase != RouletteSpinning {
				t.Fatalf("phase = %s, want spinning", h.engine.round.Phase)
			}
			if ev, ok := h.hub.last("", EventRouletteSpin); !ok || ev.payload.(RouletteSpinData).ResultNumber != tt.symbol {
				t.Fatalf("roulette_spin = %+v, want %s", ev, tt.symbol)
			}

			h.sched.elapse()
			h.sched.flush()

			bet := h.engine.round.Bets[0]
			if bet.Payout != tt.wantPayout {
				t.Errorf("payout = %d, want %d", bet.Payout, tt.wantPayout)
			}
			if got := h.balance(t, "u1"); got != tt.wantBalance {
				t.Errorf("balance = %d, want %d", got, tt.wantBalance)
			}
			win, won := h.hub.last("c1", EventRouletteWin)
			if won != (tt.wantPayout > 0) {
				t.Errorf("roulette_win sent = %v, want %v", won, tt.wantPayout > 0)
			}
			if won && win.payload.(RouletteWinData).Amount != tt.wantPayout {
				t.Errorf("roulette_win = %+v", win.payload)
			}

			result, ok := h.hub.last("", EventRouletteResult)
			if !ok {
				t.Fatal("roulette_result not published")
			}
			data := result.payload.(RouletteResultData)
			if data.Number != tt.symbol || data.Color != ColorOf(tt.symbol) {
				t.Errorf("roulette_result = %+v", data)
			}
		})
	}
}

func TestRouletteEngine_NumberBets(t *testing.T) {
	h := newRouletteHarness("00")
	h.engine.Start()

	h.engine.PlaceBet("c1", "u1", "alice", 10, "00")
	h.engine.PlaceBet("c1", "u1", "alice", 10, "0")
	h.engine.PlaceBet("c2", "u2", "bob", 10, "red")
	h.sched.flush()

	if len(h.engine.round.Bets) != 3 {
		t.Fatalf("bets = %d, want 3", len(h.engine.round.Bets))
	}

	h.spin()
	h.sched.elapse()
	h.sched.flush()

	payouts := map[string]int64{}
	for _, b := range h.engine.round.Bets {
		payouts[b.Type] = b.Payout
	}
	if payouts["00"] != 360 || payouts["0"] != 0 || payouts["red"] != 0 {
		t.Errorf("payouts = %v", payouts)
	}
	if got := h.balance(t, "u1"); got != 1000-20+360 {
		t.Errorf("balance = %d, want %d", got, 1000-20+360)
	}

	acc, _ := h.store.Account(context.Background(), "u1")
	if acc.TotalGames != 2 || acc.TotalWins != 1 || acc.TotalWon != 360 {
		t.Errorf("stats = %+v", acc)
	}
	history, _ := h.store.RecentOutcomes(context.Background(), ledger.GameRoulette, 10)
	if len(history) != 1 || history[0] != "00" {
		t.Errorf("history = %v, want [00]", history)
	}
}

func TestRouletteEngine_ResolvesEachBetOnce(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()
	h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
	h.sched.flush()
	h.spin()

	h.engine.settle()
	h.engine.settle()
	h.sched.flush()

	if got := h.balance(t, "u1"); got != 1050 {
		t.Errorf("balance = %d, want one payout", got)
	}
}

func TestRouletteEngine_Countdown(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()

	h.sched.tick()
	if h.engine.round.Phase != RouletteBetting {
		t.Fatalf("phase = %s at timer %d", h.engine.round.Phase, h.engine.round.Timer)
	}

	h.sched.tick()
	if h.engine.round.Phase != RouletteCountdown {
		t.Fatalf("phase = %s at timer %d, want countdown", h.engine.round.Phase, h.engine.round.Timer)
	}

	h.engine.PlaceBet("c1", "u1", "alice", 10, "red")
	h.sched.flush()
	if len(h.engine.round.Bets) != 1 {
		t.Error("countdown did not accept a bet")
	}
	if n := len(h.hub.find("", EventRouletteTimer)); n != 2 {
		t.Errorf("roulette_timer count = %d, want 2", n)
	}
}

func TestRouletteEngine_RejectsBets(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		betType string
		balance int64
		spin    bool
		wantMsg string
	}{
		{name: "bad type", amount: 10, betType: "green", balance: 1000, wantMsg: `Invalid bet type "green"`},
		{name: "number out of range", amount: 10, betType: "37", balance: 1000, wantMsg: `Invalid bet type "37"`},
		{name: "too small", amount: 0, betType: "red", balance: 1000, wantMsg: "Bet must be between 1 and 10000"},
		{name: "insufficient funds", amount: 100, betType: "red", balance: 10, wantMsg: "Insufficient funds"},
		{name: "spinning", amount: 10, betType: "red", balance: 1000, spin: true, wantMsg: "Betting is closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouletteHarness("2")
			h.store.SetBalance("u1", tt.balance)
			h.engine.Start()
			if tt.spin {
				h.spin()
			}

			h.engine.PlaceBet("c1", "u1", "alice", tt.amount, tt.betType)
			h.sched.flush()

			ev, ok := h.hub.last("c1", EventRouletteError)
			if !ok || ev.payload.(ErrorData).Message != tt.wantMsg {
				t.Fatalf("roulette_error = %+v, want %q", ev, tt.wantMsg)
			}
			if len(h.engine.round.Bets) != 0 {
				t.Error("rejected bet was appended")
			}
			if got := h.balance(t, "u1"); got != tt.balance {
				t.Errorf("balance = %d, want %d", got, tt.balance)
			}
		})
	}
}

func TestRouletteEngine_LateDebitRefunded(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()

	h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
	h.spin()
	h.sched.flush()

	if len(h.engine.round.Bets) != 0 {
		t.Error("late debit placed a bet into a spinning round")
	}
	if got := h.balance(t, "u1"); got != 1000 {
		t.Errorf("balance = %d, want 1000", got)
	}
}

func TestRouletteEngine_ForgetDuringBettingRefunds(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()
	h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
	h.engine.PlaceBet("c1", "u1", "alice", 20, "2")
	h.engine.PlaceBet("c2", "u2", "bob", 30, "red")
	h.sched.flush()

	h.engine.Forget("c1")
	h.sched.flush()

	if len(h.engine.round.Bets) != 1 || h.engine.round.Bets[0].ConnID != "c2" {
		t.Errorf("bets after forget = %+v", h.engine.round.Bets)
	}
	if got := h.balance(t, "u1"); got != 1000 {
		t.Errorf("balance = %d, want 1000 after refund", got)
	}
}

func TestRouletteEngine_ForgetWhileSpinningForfeits(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()
	h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
	h.sched.flush()
	h.spin()

	h.engine.Forget("c1")
	h.sched.elapse()
	h.sched.flush()

	if got := h.balance(t, "u1"); got != 950 {
		t.Errorf("balance = %d, want 950 after forfeit", got)
	}
	if _, ok := h.hub.last("c1", EventRouletteWin); ok {
		t.Error("forfeited bet was paid")
	}
	acc, _ := h.store.Account(context.Background(), "u1")
	if acc.TotalGames != 1 || acc.TotalWins != 0 {
		t.Errorf("forfeit not recorded as a loss: %+v", acc)
	}
}

func TestRouletteEngine_RoundCycle(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()
	first := h.engine.round.ID

	if state := h.engine.State(); state.ResultNumber != nil {
		t.Errorf("result visible during betting: %v", *state.ResultNumber)
	}

	h.spin()
	if h.sched.recurring() != 0 {
		t.Errorf("%d recurring timers while spinning", h.sched.recurring())
	}
	h.sched.elapse()
	if h.engine.round.Phase != RouletteResult {
		t.Fatalf("phase = %s, want result", h.engine.round.Phase)
	}
	if state := h.engine.State(); state.ResultNumber == nil || *state.ResultNumber != "2" {
		t.Errorf("result state = %+v", state)
	}

	h.sched.elapse()
	r := h.engine.round
	if r.ID == first || r.Phase != RouletteBetting || len(r.Bets) != 0 || r.ResultNumber != "" {
		t.Errorf("next round = %+v, want cleared betting round", r)
	}
	if h.sched.recurring() != 1 {
		t.Errorf("%d recurring timers, want 1", h.sched.recurring())
	}
}

func TestRouletteEngine_RecoverRefundsOpenBets(t *testing.T) {
	h := newRouletteHarness("2")
	h.engine.Start()
	h.engine.PlaceBet("c1", "u1", "alice", 50, "black")
	h.sched.flush()
	h.spin()

	h.engine.Recover("test")
	h.sched.flush()

	if h.engine.round.Phase != RouletteBetting || len(h.engine.round.Bets) != 0 {
		t.Error("recover did not open a fresh round")
	}
	if got := h.balance(t, "u1"); got != 1000 {
		t.Errorf("balance = %d, want 1000 after recovery refund", got)
	}
}
