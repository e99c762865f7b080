package game

import (
	"encoding/json"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"arcade/internal/config"
	"arcade/internal/ledger"
)

// Snapshot is the public view of every live round.
type Snapshot struct {
	Crash    CrashState    `json:"crash"`
	Roulette RouletteState `json:"roulette"`
	Online   int           `json:"online"`
}

// Manager owns the scheduling loop and funnels every connection event and
// timer callback through it.
type Manager struct {
	loop     *Loop
	hub      *Hub
	registry *Registry
	engines  *engineSet
	crash    *CrashEngine
	roulette *RouletteEngine
	validate *validator.Validate
	watchdog Timer
}

func NewManager(cfg config.Config, hub *Hub, gw ledger.Gateway, snapshots SnapshotStore) *Manager {
	loop := NewLoop()
	registry := NewRegistry()

	crash := NewCrashEngine(cfg.Crash, loop, hub, gw)
	crash.snapshots = snapshots
	crash.online = registry.OnlineCount

	roulette := NewRouletteEngine(cfg.Roulette, loop, hub, gw)
	roulette.snapshots = snapshots

	engines := newEngineSet()
	engines.RegisterEngine(crash)
	engines.RegisterEngine(roulette)

	return &Manager{
		loop:     loop,
		hub:      hub,
		registry: registry,
		engines:  engines,
		crash:    crash,
		roulette: roulette,
		validate: validator.New(),
	}
}

// Start runs the loop and returns once both engines have opened betting.
func (m *Manager) Start() {
	go m.loop.Run()
	m.loop.Call(func() {
		m.engines.StartAll()
		m.watchdog = m.loop.Every(WATCHDOG_INTERVAL, func() {
			m.engines.RecoverStalled(time.Now())
		})
	})
}

func (m *Manager) Stop() {
	m.loop.Call(func() {
		stopTimer(m.watchdog)
		m.engines.StopAll()
	})
	m.loop.Stop()
}

// Connect registers the connection and sends it the current state of both
// games. userID may be empty until the first bet binds one.
func (m *Manager) Connect(connID string, conn Conn, userID string) {
	m.hub.Register(connID, conn)
	m.loop.Do(func() {
		m.registry.Register(connID, userID)
		log.Printf("[WS] Client %s connected (online: %d)", connID, m.registry.OnlineCount())
		m.hub.Send(connID, EventGameState, m.crash.State())
		m.hub.Send(connID, EventRouletteState, m.roulette.State())
		m.hub.Publish(EventOnlineUpdate, OnlineData{Online: m.registry.OnlineCount()})
	})
}

// Disconnect stops delivery to the connection before it returns and then
// purges its unresolved bets on the loop.
func (m *Manager) Disconnect(connID string) {
	m.hub.Unregister(connID)
	m.loop.Do(func() {
		if _, ok := m.registry.Unregister(connID); !ok {
			return
		}
		m.engines.ForgetAll(connID)
		log.Printf("[WS] Client %s disconnected (online: %d)", connID, m.registry.OnlineCount())
		m.hub.Publish(EventOnlineUpdate, OnlineData{Online: m.registry.OnlineCount()})
	})
}

// Handle decodes one inbound frame and dispatches it to the loop. Malformed
// frames are answered with an error event; the connection stays open.
func (m *Manager) Handle(connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		m.protocolError(connID, "Malformed message")
		return
	}

	switch env.Type {
	case IntentPing:
		m.loop.Do(func() { m.hub.Send(connID, EventPong, nil) })

	case IntentPlaceBet:
		var intent PlaceBetIntent
		if !m.decode(connID, env.Data, &intent) {
			return
		}
		m.loop.Do(func() {
			s, ok := m.registry.Bind(connID, intent.UserID, intent.Name)
			if !ok {
				return
			}
			m.crash.PlaceBet(connID, s.UserID, s.Name, intent.Bet)
		})

	case IntentCashout:
		m.loop.Do(func() {
			if _, ok := m.registry.Session(connID); !ok {
				return
			}
			m.crash.Cashout(connID)
		})

	case IntentRouletteBet:
		var intent RouletteBetIntent
		if !m.decode(connID, env.Data, &intent) {
			return
		}
		m.loop.Do(func() {
			s, ok := m.registry.Bind(connID, intent.UserID, intent.Name)
			if !ok {
				return
			}
			m.roulette.PlaceBet(connID, s.UserID, s.Name, intent.Amount, intent.Type)
		})

	default:
		m.protocolError(connID, "Unknown message type "+env.Type)
	}
}

func (m *Manager) decode(connID string, data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		m.protocolError(connID, "Missing message data")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		m.protocolError(connID, "Malformed message data")
		return false
	}
	if err := m.validate.Struct(v); err != nil {
		m.protocolError(connID, "Invalid message: "+validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fe.Field() + " failed " + fe.Tag()
}

func (m *Manager) protocolError(connID, message string) {
	log.Printf("[WS] Protocol error from %s: %s", connID, message)
	m.loop.Do(func() { m.hub.Send(connID, EventError, ErrorData{Message: message}) })
}

// State returns a consistent snapshot of both games. It blocks until the
// loop serves it.
func (m *Manager) State() (Snapshot, bool) {
	var snap Snapshot
	ok := m.loop.Call(func() {
		snap = Snapshot{
			Crash:    m.crash.State(),
			Roulette: m.roulette.State(),
			Online:   m.registry.OnlineCount(),
		}
	})
	return snap, ok
}

func (m *Manager) Online() int {
	var online int
	m.loop.Call(func() { online = m.registry.OnlineCount() })
	return online
}

func (m *Manager) Running() bool {
	return m.loop.Running()
}
