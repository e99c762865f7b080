package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// RoundSeed is the randomness of one round: a stream of draws plus the
// commitment published before the draw and the seeds revealed after it.
type RoundSeed interface {
	Source
	Commitment() string
	Reveal() Reveal
}

// FairSeed derives draws from HMAC-SHA256(serverSeed, clientSeed:nonce:cursor)
// so a settled round can be replayed from its revealed seeds.
type FairSeed struct {
	serverSeed string
	clientSeed string
	nonce      int
	cursor     int
}

func NewFairSeed(nonce int) RoundSeed {
	return &FairSeed{
		serverSeed: GenerateSeed(),
		clientSeed: GenerateSeed(), // In production, aggregate from player inputs
		nonce:      nonce,
	}
}

func (f *FairSeed) Float64() float64 {
	v := drawFloat(f.serverSeed, f.clientSeed, f.nonce, f.cursor)
	f.cursor++
	return v
}

func (f *FairSeed) Commitment() string {
	return HashCommitment(f.serverSeed)
}

func (f *FairSeed) Reveal() Reveal {
	return Reveal{ServerSeed: f.serverSeed, ClientSeed: f.clientSeed, Nonce: f.nonce}
}

// drawFloat maps the first 64 bits of the HMAC to [0, 1).
func drawFloat(serverSeed, clientSeed string, nonce, cursor int) float64 {
	data := fmt.Sprintf("%s:%d:%d", clientSeed, nonce, cursor)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	hashHex := hex.EncodeToString(h.Sum(nil))

	// Take first 16 hex characters (64 bits)
	i := new(big.Int)
	i.SetString(hashHex[:16], 16)

	const MAX_VALUE_F64 = 18446744073709551616.0
	r := float64(i.Uint64()) / MAX_VALUE_F64
	if r >= 1 {
		r = math.Nextafter(1, 0)
	}
	return r
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

func replay(serverSeed, clientSeed string, nonce int) *FairSeed {
	return &FairSeed{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}
}

// VerifyCrashPoint lets players check a revealed crash round.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int, claimed float64) bool {
	calculated := DrawCrashPoint(replay(serverSeed, clientSeed, nonce))
	return math.Abs(calculated-claimed) < 0.005
}

// VerifyRouletteNumber lets players check a revealed roulette round.
func VerifyRouletteNumber(serverSeed, clientSeed string, nonce int, claimed string) bool {
	return DrawRouletteNumber(replay(serverSeed, clientSeed, nonce)) == claimed
}
