package game

import (
	"encoding/json"
	"time"

	"arcade/internal/ledger"
)

type GameKind string

const (
	GameCrash    GameKind = ledger.GameCrash
	GameRoulette GameKind = ledger.GameRoulette
)

type CrashPhase string

const (
	CrashBetting CrashPhase = "betting"
	CrashFlying  CrashPhase = "flying"
	CrashCrashed CrashPhase = "crashed"
)

type RoulettePhase string

const (
	RouletteBetting   RoulettePhase = "betting"
	RouletteCountdown RoulettePhase = "countdown"
	RouletteSpinning  RoulettePhase = "spinning"
	RouletteResult    RoulettePhase = "result"
)

type BetResult string

const (
	ResultWin  BetResult = "win"
	ResultLose BetResult = "lose"
)

// Server -> client events.
const (
	EventBettingPhase     = "betting_phase"
	EventTimerUpdate      = "timer_update"
	EventGameStarted      = "game_started"
	EventMultiplierUpdate = "multiplier_update"
	EventPlayerBet        = "player_bet"
	EventPlayerCashout    = "player_cashout"
	EventGameCrashed      = "game_crashed"
	EventGameState        = "game_state"
	EventOnlineUpdate     = "online_update"
	EventBetSuccess       = "bet_success"
	EventBetError         = "bet_error"
	EventCashoutSuccess   = "cashout_success"
	EventBalanceUpdate    = "balance_update"

	EventRouletteState      = "roulette_state"
	EventRouletteTimer      = "roulette_timer"
	EventRouletteBetPlaced  = "roulette_bet_placed"
	EventRouletteSpin       = "roulette_spin"
	EventRouletteResult     = "roulette_result"
	EventRouletteWin        = "roulette_win"
	EventRouletteBetSuccess = "roulette_bet_success"
	EventRouletteError      = "roulette_error"

	EventError = "error"
	EventPong  = "pong"
)

// Client -> server intents.
const (
	IntentPlaceBet    = "place_bet"
	IntentCashout     = "cashout"
	IntentRouletteBet = "roulette_bet"
	IntentPing        = "ping"
)

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type PlaceBetIntent struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Name   string `json:"name" validate:"max=32"`
	Bet    int64  `json:"bet" validate:"required,gt=0"`
}

type RouletteBetIntent struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Name   string `json:"name" validate:"max=32"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Type   string `json:"type" validate:"required,max=5"`
}

type CrashBet struct {
	ConnID            string    `json:"id"`
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	Amount            int64     `json:"bet"`
	CashedOut         bool      `json:"cashedOut"`
	CashoutMultiplier *float64  `json:"cashoutMultiplier"`
	WinAmount         int64     `json:"winAmount"`
	Result            BetResult `json:"result,omitempty"`
	PlacedAt          time.Time `json:"placedAt"`
}

type RouletteBet struct {
	ConnID   string    `json:"id"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Amount   int64     `json:"amount"`
	Type     string    `json:"type"`
	Payout   int64     `json:"payout"`
	PlacedAt time.Time `json:"placedAt"`
	resolved bool
}

// Reveal discloses the seeds of a settled round.
type Reveal struct {
	ServerSeed string `json:"serverSeed"`
	ClientSeed string `json:"clientSeed"`
	Nonce      int    `json:"nonce"`
}

type BettingPhaseData struct {
	RoundID    string `json:"roundId"`
	Timer      int    `json:"timer"`
	Commitment string `json:"commitment"`
}

type TimerData struct {
	Timer int `json:"timer"`
}

type GameStartedData struct {
	RoundID    string  `json:"roundId"`
	CrashPoint float64 `json:"crashPoint"`
}

type MultiplierData struct {
	Multiplier float64 `json:"multiplier"`
}

type CashoutData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	WinAmount  int64   `json:"winAmount"`
}

type GameCrashedData struct {
	RoundID    string     `json:"roundId"`
	CrashPoint float64    `json:"crashPoint"`
	Players    []CrashBet `json:"players"`
	Reveal     Reveal     `json:"reveal"`
}

type CrashState struct {
	RoundID    string     `json:"roundId"`
	Phase      CrashPhase `json:"phase"`
	Multiplier float64    `json:"multiplier"`
	Timer      int        `json:"timer"`
	Players    []CrashBet `json:"players"`
	Online     int        `json:"online"`
	Commitment string     `json:"commitment"`
}

type OnlineData struct {
	Online int `json:"online"`
}

type RouletteState struct {
	RoundID      string        `json:"roundId"`
	Phase        RoulettePhase `json:"phase"`
	Timer        int           `json:"timer"`
	ResultNumber *string       `json:"resultNumber"`
	Bets         []RouletteBet `json:"bets"`
	Commitment   string        `json:"commitment"`
}

type RouletteBetPlacedData struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
	Type   string `json:"type"`
}

type RouletteSpinData struct {
	ResultNumber string `json:"resultNumber"`
}

type RouletteResultData struct {
	RoundID string `json:"roundId"`
	Number  string `json:"number"`
	Color   Color  `json:"color"`
	Reveal  Reveal `json:"reveal"`
}

type RouletteWinData struct {
	Amount int64  `json:"amount"`
	Number string `json:"number"`
}

type BalanceData struct {
	Balance int64 `json:"balance"`
}

type CashoutSuccessData struct {
	Multiplier float64 `json:"multiplier"`
	WinAmount  int64   `json:"winAmount"`
}

type ErrorData struct {
	Message string `json:"message"`
}
