package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"arcade/internal/config"
	"arcade/internal/ledger"
)

type RouletteRound struct {
	ID           string
	Phase        RoulettePhase
	Timer        int
	ResultNumber string
	Bets         []*RouletteBet

	seed      RoundSeed
	pending   map[string]int
	forfeited []ledger.Play
}

func (r *RouletteRound) bets() []RouletteBet {
	bets := make([]RouletteBet, 0, len(r.Bets))
	for _, b := range r.Bets {
		bets = append(bets, *b)
	}
	return bets
}

func (r *RouletteRound) accepting() bool {
	return r.Phase == RouletteBetting || r.Phase == RouletteCountdown
}

type RouletteEngine struct {
	cfg       config.RouletteConfig
	sched     Scheduler
	hub       Broadcaster
	ledger    ledger.Gateway
	snapshots SnapshotStore
	now       func() time.Time
	seeds     func(nonce int) RoundSeed

	round    *RouletteRound
	nonce    int
	ticker   Timer
	delay    Timer
	deadline time.Time
}

func NewRouletteEngine(cfg config.RouletteConfig, sched Scheduler, hub Broadcaster, gw ledger.Gateway) *RouletteEngine {
	return &RouletteEngine{
		cfg:    cfg,
		sched:  sched,
		hub:    hub,
		ledger: gw,
		now:    time.Now,
		seeds:  NewFairSeed,
	}
}

func (e *RouletteEngine) Kind() GameKind {
	return GameRoulette
}

func (e *RouletteEngine) Start() {
	log.Println("[ROULETTE] Engine started")
	e.startBetting()
}

func (e *RouletteEngine) Stop() {
	e.cancelTimers()
	log.Println("[ROULETTE] Engine stopped")
}

func (e *RouletteEngine) cancelTimers() {
	stopTimer(e.ticker)
	stopTimer(e.delay)
	e.ticker = nil
	e.delay = nil
}

func (e *RouletteEngine) Snapshot() interface{} {
	return e.State()
}

func (e *RouletteEngine) State() RouletteState {
	r := e.round
	if r == nil {
		return RouletteState{Phase: RouletteBetting, Bets: []RouletteBet{}}
	}
	state := RouletteState{
		RoundID:    r.ID,
		Phase:      r.Phase,
		Timer:      r.Timer,
		Bets:       r.bets(),
		Commitment: r.seed.Commitment(),
	}
	// The drawn symbol stays hidden until the spin is broadcast.
	if r.ResultNumber != "" && (r.Phase == RouletteSpinning || r.Phase == RouletteResult) {
		number := r.ResultNumber
		state.ResultNumber = &number
	}
	return state
}

func (e *RouletteEngine) Stalled(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline.Add(STALL_GRACE))
}

func (e *RouletteEngine) startBetting() {
	e.cancelTimers()

	e.nonce++
	e.round = &RouletteRound{
		ID:      uuid.NewString(),
		Phase:   RouletteBetting,
		Timer:   e.cfg.BettingSeconds,
		seed:    e.seeds(e.nonce),
		pending: make(map[string]int),
	}
	if e.round.Timer <= e.cfg.CountdownAt {
		e.round.Phase = RouletteCountdown
	}
	e.deadline = e.now().Add(time.Duration(e.cfg.BettingSeconds) * time.Second)

	log.Printf("[ROULETTE] === ROUND %s === betting open for %ds", e.round.ID, e.round.Timer)

	e.hub.Publish(EventRouletteState, e.State())
	e.ticker = e.sched.Every(COUNTDOWN_TICK, guard("ROULETTE", e.onBettingTick, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameRoulette, e.State())
}

func (e *RouletteEngine) onBettingTick() {
	r := e.round
	if r == nil || !r.accepting() {
		return
	}
	r.Timer--
	if r.Timer <= 0 {
		e.startSpinning()
		return
	}
	if r.Phase == RouletteBetting && r.Timer <= e.cfg.CountdownAt {
		r.Phase = RouletteCountdown
		log.Printf("[ROULETTE] Round %s countdown", r.ID)
	}
	e.hub.Publish(EventRouletteTimer, TimerData{Timer: r.Timer})
}

func (e *RouletteEngine) startSpinning() {
	e.cancelTimers()

	r := e.round
	r.Phase = RouletteSpinning
	r.Timer = 0
	r.ResultNumber = DrawRouletteNumber(r.seed)
	e.deadline = e.now().Add(e.cfg.SpinDuration)

	log.Printf("[ROULETTE] Round %s spinning with %d bets", r.ID, len(r.Bets))

	e.hub.Publish(EventRouletteSpin, RouletteSpinData{ResultNumber: r.ResultNumber})
	e.delay = e.sched.After(e.cfg.SpinDuration, guard("ROULETTE", e.settle, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameRoulette, e.State())
}

func (e *RouletteEngine) settle() {
	e.cancelTimers()

	r := e.round
	r.Phase = RouletteResult
	e.deadline = e.now().Add(e.cfg.ResultDelay)
	number := r.ResultNumber
	color := ColorOf(number)

	log.Printf("[ROULETTE] === ROUND %s RESULT %s (%s) ===", r.ID, number, color)

	e.hub.Publish(EventRouletteResult, RouletteResultData{
		RoundID: r.ID,
		Number:  number,
		Color:   color,
		Reveal:  r.seed.Reveal(),
	})

	plays := append([]ledger.Play{}, r.forfeited...)
	for _, b := range r.Bets {
		if b.resolved {
			continue
		}
		b.resolved = true
		b.Payout = RoulettePayout(b.Type, b.Amount, number)
		plays = append(plays, ledger.Play{
			UserID:    b.UserID,
			Game:      ledger.GameRoulette,
			Stake:     b.Amount,
			Won:       b.Payout > 0,
			WinAmount: b.Payout,
		})
		if b.Payout > 0 {
			e.payout(r.ID, b.ConnID, b.UserID, b.Payout, number)
		}
	}

	roundID := r.ID
	e.sched.Go(func(ctx context.Context) func() {
		if err := e.ledger.RecordOutcome(ctx, ledger.GameRoulette, number); err != nil {
			log.Printf("[ROULETTE] Failed to store outcome %s for round %s: %v", number, roundID, err)
		}
		for _, p := range plays {
			if err := e.ledger.RecordPlay(ctx, p); err != nil {
				log.Printf("[ROULETTE] Failed to record play for user %s round %s: %v", p.UserID, roundID, err)
			}
		}
		return nil
	})

	e.delay = e.sched.After(e.cfg.ResultDelay, guard("ROULETTE", e.startBetting, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameRoulette, e.State())
}

func (e *RouletteEngine) payout(roundID, connID, userID string, amount int64, number string) {
	log.Printf("[ROULETTE] User %s won %d on %s", userID, amount, number)
	e.sched.Go(func(ctx context.Context) func() {
		balance, err := e.ledger.Credit(ctx, userID, amount)
		if err != nil {
			log.Printf("[ROULETTE] Credit failed for user %s round %s amount %d: %v", userID, roundID, amount, err)
			return nil
		}
		return func() {
			e.hub.Send(connID, EventRouletteWin, RouletteWinData{Amount: amount, Number: number})
			e.hub.Send(connID, EventBalanceUpdate, BalanceData{Balance: balance})
		}
	})
}

// PlaceBet debits the stake off the loop and appends the bet only if the
// captured round is still accepting when the debit settles.
func (e *RouletteEngine) PlaceBet(connID, userID, name string, amount int64, rawType string) {
	betType, err := ParseBetType(rawType)
	if err != nil {
		e.reject(connID, fmt.Sprintf("Invalid bet type %q", strings.TrimSpace(rawType)))
		return
	}
	if amount < e.cfg.MinBet || amount > e.cfg.MaxBet {
		e.reject(connID, fmt.Sprintf("Bet must be between %d and %d", e.cfg.MinBet, e.cfg.MaxBet))
		return
	}

	r := e.round
	if r == nil || !r.accepting() {
		e.reject(connID, "Betting is closed")
		return
	}

	r.pending[connID]++
	roundID := r.ID
	e.sched.Go(func(ctx context.Context) func() {
		balance, err := e.ledger.Debit(ctx, userID, amount)
		return func() {
			e.settleDebit(roundID, connID, userID, name, amount, betType, balance, err)
		}
	})
}

func (e *RouletteEngine) settleDebit(roundID, connID, userID, name string, amount int64, betType string, balance int64, err error) {
	r := e.round
	live := r != nil && r.ID == roundID
	stillPending := live && r.pending[connID] > 0
	if stillPending {
		if r.pending[connID]--; r.pending[connID] == 0 {
			delete(r.pending, connID)
		}
	}

	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			e.reject(connID, "Insufficient funds")
			return
		}
		log.Printf("[ROULETTE] Debit failed for user %s round %s amount %d: %v", userID, roundID, amount, err)
		e.reject(connID, "Transaction failed")
		return
	}

	if !stillPending || !r.accepting() {
		log.Printf("[ROULETTE] Round %s closed before debit of user %s settled, refunding %d", roundID, userID, amount)
		e.refund(roundID, userID, amount)
		e.reject(connID, "Betting is closed")
		return
	}

	bet := &RouletteBet{
		ConnID:   connID,
		UserID:   userID,
		Name:     name,
		Amount:   amount,
		Type:     betType,
		PlacedAt: e.now(),
	}
	r.Bets = append(r.Bets, bet)

	log.Printf("[BET] User %s placed %d on %s in roulette round %s", userID, amount, betType, roundID)

	e.hub.Publish(EventRouletteBetPlaced, RouletteBetPlacedData{Name: name, Amount: amount, Type: betType})
	e.hub.Send(connID, EventRouletteBetSuccess, BalanceData{Balance: balance})
}

// Forget refunds the connection's bets while betting is open and forfeits
// them once the wheel is spinning.
func (e *RouletteEngine) Forget(connID string) {
	r := e.round
	if r == nil {
		return
	}
	delete(r.pending, connID)

	kept := r.Bets[:0]
	for _, b := range r.Bets {
		if b.ConnID != connID || b.resolved {
			kept = append(kept, b)
			continue
		}
		switch {
		case r.accepting():
			e.refund(r.ID, b.UserID, b.Amount)
			log.Printf("[ROULETTE] Purged bet of %s before spin, refunding %d", b.UserID, b.Amount)
		case r.Phase == RouletteSpinning:
			r.forfeited = append(r.forfeited, ledger.Play{UserID: b.UserID, Game: ledger.GameRoulette, Stake: b.Amount})
			log.Printf("[ROULETTE] Purged bet of %s mid-spin, stake %d forfeited", b.UserID, b.Amount)
		}
	}
	r.Bets = kept
}

func (e *RouletteEngine) Recover(reason interface{}) {
	log.Printf("[ROULETTE] Recovering from %v", reason)
	if r := e.round; r != nil {
		for _, b := range r.Bets {
			if !b.resolved {
				b.resolved = true
				e.refund(r.ID, b.UserID, b.Amount)
			}
		}
	}
	e.startBetting()
}

func (e *RouletteEngine) refund(roundID, userID string, amount int64) {
	e.sched.Go(func(ctx context.Context) func() {
		if _, err := e.ledger.Credit(ctx, userID, amount); err != nil {
			log.Printf("[ROULETTE] Refund failed for user %s round %s amount %d: %v", userID, roundID, amount, err)
		}
		return nil
	})
}

func (e *RouletteEngine) reject(connID, message string) {
	e.hub.Send(connID, EventRouletteError, ErrorData{Message: message})
}
