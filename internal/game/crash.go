package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arcade/internal/config"
	"arcade/internal/ledger"
)

// multiplier = MULTIPLIER_BASE ^ (elapsed_seconds * MULTIPLIER_RATE),
// which doubles every ten seconds.
const (
	MULTIPLIER_BASE = 2.0
	MULTIPLIER_RATE = 0.1
)

type CrashRound struct {
	ID         string
	Phase      CrashPhase
	Timer      int
	CrashPoint float64
	Multiplier float64
	StartedAt  time.Time
	Bets       []*CrashBet

	seed      RoundSeed
	pending   map[string]bool
	forfeited []ledger.Play
}

func (r *CrashRound) betFor(connID string) *CrashBet {
	for _, b := range r.Bets {
		if b.ConnID == connID {
			return b
		}
	}
	return nil
}

func (r *CrashRound) players() []CrashBet {
	players := make([]CrashBet, 0, len(r.Bets))
	for _, b := range r.Bets {
		p := *b
		if b.CashoutMultiplier != nil {
			m := *b.CashoutMultiplier
			p.CashoutMultiplier = &m
		}
		players = append(players, p)
	}
	return players
}

type CrashEngine struct {
	cfg       config.CrashConfig
	sched     Scheduler
	hub       Broadcaster
	ledger    ledger.Gateway
	snapshots SnapshotStore
	now       func() time.Time
	seeds     func(nonce int) RoundSeed
	online    func() int

	round    *CrashRound
	nonce    int
	ticker   Timer
	delay    Timer
	deadline time.Time
}

func NewCrashEngine(cfg config.CrashConfig, sched Scheduler, hub Broadcaster, gw ledger.Gateway) *CrashEngine {
	return &CrashEngine{
		cfg:    cfg,
		sched:  sched,
		hub:    hub,
		ledger: gw,
		now:    time.Now,
		seeds:  NewFairSeed,
		online: func() int { return 0 },
	}
}

// MultiplierAt is strictly increasing in elapsed time.
func MultiplierAt(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Pow(MULTIPLIER_BASE, elapsed.Seconds()*MULTIPLIER_RATE)
}

// ElapsedFor is the flight time needed to reach multiplier m.
func ElapsedFor(m float64) time.Duration {
	if m <= MIN_MULTIPLIER {
		return 0
	}
	seconds := math.Log(m) / (MULTIPLIER_RATE * math.Log(MULTIPLIER_BASE))
	return time.Duration(seconds * float64(time.Second))
}

// CashoutAmount is floor(stake * m), computed in decimal so that e.g.
// 100 x 1.15 pays 115 and not 114.
func CashoutAmount(stake int64, m float64) int64 {
	return decimal.NewFromInt(stake).Mul(decimal.NewFromFloat(m)).Floor().IntPart()
}

func truncate2(m float64) float64 {
	return math.Floor(m*100) / 100
}

func (e *CrashEngine) Kind() GameKind {
	return GameCrash
}

func (e *CrashEngine) Start() {
	log.Println("[CRASH] Engine started")
	e.startBetting()
}

func (e *CrashEngine) Stop() {
	e.cancelTimers()
	log.Println("[CRASH] Engine stopped")
}

func (e *CrashEngine) cancelTimers() {
	stopTimer(e.ticker)
	stopTimer(e.delay)
	e.ticker = nil
	e.delay = nil
}

func (e *CrashEngine) Snapshot() interface{} {
	return e.State()
}

func (e *CrashEngine) State() CrashState {
	r := e.round
	if r == nil {
		return CrashState{Players: []CrashBet{}, Online: e.online(), Multiplier: MIN_MULTIPLIER}
	}
	return CrashState{
		RoundID:    r.ID,
		Phase:      r.Phase,
		Multiplier: r.Multiplier,
		Timer:      r.Timer,
		Players:    r.players(),
		Online:     e.online(),
		Commitment: r.seed.Commitment(),
	}
}

func (e *CrashEngine) Stalled(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline.Add(STALL_GRACE))
}

func (e *CrashEngine) startBetting() {
	e.cancelTimers()

	e.nonce++
	e.round = &CrashRound{
		ID:         uuid.NewString(),
		Phase:      CrashBetting,
		Timer:      e.cfg.BettingSeconds,
		Multiplier: MIN_MULTIPLIER,
		seed:       e.seeds(e.nonce),
		pending:    make(map[string]bool),
	}
	e.deadline = e.now().Add(time.Duration(e.cfg.BettingSeconds) * time.Second)

	log.Printf("[CRASH] === ROUND %s === betting open for %ds", e.round.ID, e.round.Timer)

	e.hub.Publish(EventBettingPhase, BettingPhaseData{
		RoundID:    e.round.ID,
		Timer:      e.round.Timer,
		Commitment: e.round.seed.Commitment(),
	})
	e.ticker = e.sched.Every(COUNTDOWN_TICK, guard("CRASH", e.onBettingTick, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameCrash, e.State())
}

func (e *CrashEngine) onBettingTick() {
	r := e.round
	if r == nil || r.Phase != CrashBetting {
		return
	}
	r.Timer--
	if r.Timer <= 0 {
		e.startFlying()
		return
	}
	e.hub.Publish(EventTimerUpdate, TimerData{Timer: r.Timer})
}

func (e *CrashEngine) startFlying() {
	e.cancelTimers()

	r := e.round
	r.Phase = CrashFlying
	r.Timer = 0
	r.CrashPoint = DrawCrashPoint(r.seed)
	r.Multiplier = MIN_MULTIPLIER
	r.StartedAt = e.now()
	e.deadline = r.StartedAt.Add(ElapsedFor(r.CrashPoint))

	log.Printf("[CRASH] Round %s flying with %d bets", r.ID, len(r.Bets))

	e.hub.Publish(EventGameStarted, GameStartedData{RoundID: r.ID, CrashPoint: r.CrashPoint})
	e.ticker = e.sched.Every(e.cfg.FlightTick, guard("CRASH", e.onFlightTick, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameCrash, e.State())
}

func (e *CrashEngine) onFlightTick() {
	r := e.round
	if r == nil || r.Phase != CrashFlying {
		return
	}

	m := truncate2(MultiplierAt(e.now().Sub(r.StartedAt)))
	if m < r.Multiplier {
		m = r.Multiplier
	}
	if m >= r.CrashPoint {
		e.crash()
		return
	}
	r.Multiplier = m
	e.hub.Publish(EventMultiplierUpdate, MultiplierData{Multiplier: m})
}

func (e *CrashEngine) crash() {
	e.cancelTimers()

	r := e.round
	r.Phase = CrashCrashed
	r.Multiplier = r.CrashPoint
	e.deadline = e.now().Add(e.cfg.RestartDelay)

	plays := append([]ledger.Play{}, r.forfeited...)
	for _, b := range r.Bets {
		if b.Result == "" {
			b.Result = ResultLose
		}
		plays = append(plays, crashPlay(b))
	}

	log.Printf("[CRASH] === ROUND %s CRASHED at %.2fx ===", r.ID, r.CrashPoint)

	e.hub.Publish(EventGameCrashed, GameCrashedData{
		RoundID:    r.ID,
		CrashPoint: r.CrashPoint,
		Players:    r.players(),
		Reveal:     r.seed.Reveal(),
	})

	roundID := r.ID
	value := strconv.FormatFloat(r.CrashPoint, 'f', 2, 64)
	e.sched.Go(func(ctx context.Context) func() {
		if err := e.ledger.RecordOutcome(ctx, ledger.GameCrash, value); err != nil {
			log.Printf("[CRASH] Failed to store outcome %s for round %s: %v", value, roundID, err)
		}
		for _, p := range plays {
			if err := e.ledger.RecordPlay(ctx, p); err != nil {
				log.Printf("[CRASH] Failed to record play for user %s round %s: %v", p.UserID, roundID, err)
			}
		}
		return nil
	})

	e.delay = e.sched.After(e.cfg.RestartDelay, guard("CRASH", e.startBetting, e.Recover))
	saveSnapshot(e.sched, e.snapshots, GameCrash, e.State())
}

func crashPlay(b *CrashBet) ledger.Play {
	p := ledger.Play{UserID: b.UserID, Game: ledger.GameCrash, Stake: b.Amount}
	if b.Result == ResultWin && b.CashoutMultiplier != nil {
		p.Won = true
		p.WinAmount = b.WinAmount
		p.Multiplier = *b.CashoutMultiplier
	}
	return p
}

// PlaceBet accepts a stake during betting. The debit runs off the loop; its
// continuation re-checks that the captured round is still open.
func (e *CrashEngine) PlaceBet(connID, userID, name string, amount int64) {
	if amount < e.cfg.MinBet || amount > e.cfg.MaxBet {
		e.reject(connID, fmt.Sprintf("Bet must be between %d and %d", e.cfg.MinBet, e.cfg.MaxBet))
		return
	}

	r := e.round
	if r == nil || r.Phase != CrashBetting {
		e.reject(connID, "Betting is closed")
		return
	}
	if r.pending[connID] || r.betFor(connID) != nil {
		e.reject(connID, "Bet already placed")
		return
	}

	r.pending[connID] = true
	roundID := r.ID
	e.sched.Go(func(ctx context.Context) func() {
		balance, err := e.ledger.Debit(ctx, userID, amount)
		return func() {
			e.settleDebit(roundID, connID, userID, name, amount, balance, err)
		}
	})
}

func (e *CrashEngine) settleDebit(roundID, connID, userID, name string, amount, balance int64, err error) {
	r := e.round
	live := r != nil && r.ID == roundID
	stillPending := live && r.pending[connID]
	if live {
		delete(r.pending, connID)
	}

	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			e.reject(connID, "Insufficient funds")
			return
		}
		log.Printf("[CRASH] Debit failed for user %s round %s amount %d: %v", userID, roundID, amount, err)
		e.reject(connID, "Transaction failed")
		return
	}

	if !stillPending || r.Phase != CrashBetting {
		log.Printf("[CRASH] Round %s closed before debit of user %s settled, refunding %d", roundID, userID, amount)
		e.refund(roundID, userID, amount)
		e.reject(connID, "Betting is closed")
		return
	}

	bet := &CrashBet{
		ConnID:   connID,
		UserID:   userID,
		Name:     name,
		Amount:   amount,
		PlacedAt: e.now(),
	}
	r.Bets = append(r.Bets, bet)

	log.Printf("[BET] User %s placed %d on crash round %s", userID, amount, roundID)

	e.hub.Publish(EventPlayerBet, *bet)
	e.hub.Send(connID, EventBetSuccess, BalanceData{Balance: balance})
}

// Cashout locks in the last broadcast multiplier for the connection's bet.
func (e *CrashEngine) Cashout(connID string) {
	r := e.round
	if r == nil || r.Phase != CrashFlying {
		e.reject(connID, "Cannot cash out now")
		return
	}
	bet := r.betFor(connID)
	if bet == nil {
		e.reject(connID, "No active bet")
		return
	}
	if bet.CashedOut {
		e.reject(connID, "Already cashed out")
		return
	}
	m := r.Multiplier
	if m >= r.CrashPoint {
		e.reject(connID, "Too late")
		return
	}

	win := CashoutAmount(bet.Amount, m)
	bet.CashedOut = true
	bet.CashoutMultiplier = &m
	bet.Result = ResultWin
	bet.WinAmount = win

	log.Printf("[CASHOUT] User %s cashed out at %.2fx (Payout: %d)", bet.UserID, m, win)

	e.hub.Publish(EventPlayerCashout, CashoutData{ID: connID, Name: bet.Name, Multiplier: m, WinAmount: win})
	e.hub.Send(connID, EventCashoutSuccess, CashoutSuccessData{Multiplier: m, WinAmount: win})

	userID, roundID := bet.UserID, r.ID
	e.sched.Go(func(ctx context.Context) func() {
		balance, err := e.ledger.Credit(ctx, userID, win)
		if err != nil {
			log.Printf("[CRASH] Credit failed for user %s round %s amount %d: %v", userID, roundID, win, err)
			return nil
		}
		return func() {
			e.hub.Send(connID, EventBalanceUpdate, BalanceData{Balance: balance})
		}
	})
}

// Forget refunds a purged bet while betting is open and forfeits it once
// the round is flying.
func (e *CrashEngine) Forget(connID string) {
	r := e.round
	if r == nil {
		return
	}
	delete(r.pending, connID)

	bet := r.betFor(connID)
	if bet == nil || bet.Result != "" {
		return
	}

	switch r.Phase {
	case CrashBetting:
		r.Bets = removeCrashBet(r.Bets, bet)
		e.refund(r.ID, bet.UserID, bet.Amount)
		log.Printf("[CRASH] Purged bet of %s before flight, refunding %d", bet.UserID, bet.Amount)
	case CrashFlying:
		r.Bets = removeCrashBet(r.Bets, bet)
		bet.Result = ResultLose
		r.forfeited = append(r.forfeited, crashPlay(bet))
		log.Printf("[CRASH] Purged bet of %s in flight, stake %d forfeited", bet.UserID, bet.Amount)
	}
}

func removeCrashBet(bets []*CrashBet, target *CrashBet) []*CrashBet {
	out := bets[:0]
	for _, b := range bets {
		if b != target {
			out = append(out, b)
		}
	}
	return out
}

func (e *CrashEngine) Recover(reason interface{}) {
	log.Printf("[CRASH] Recovering from %v", reason)
	if r := e.round; r != nil && r.Phase != CrashCrashed {
		for _, b := range r.Bets {
			if b.Result == "" {
				e.refund(r.ID, b.UserID, b.Amount)
			}
		}
	}
	e.startBetting()
}

func (e *CrashEngine) refund(roundID, userID string, amount int64) {
	e.sched.Go(func(ctx context.Context) func() {
		if _, err := e.ledger.Credit(ctx, userID, amount); err != nil {
			log.Printf("[CRASH] Refund failed for user %s round %s amount %d: %v", userID, roundID, amount, err)
		}
		return nil
	})
}

func (e *CrashEngine) reject(connID, message string) {
	e.hub.Send(connID, EventBetError, ErrorData{Message: message})
}
