package service

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

// DiceSource supplies uniform integers in [0, n)
type DiceSource interface {
	IntN(n int) int
}

// lockedSource makes a *rand.Rand safe for the scheduler and admin requests to share
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// NewSecureDiceSource returns a ChaCha8 generator seeded from the OS entropy pool
func NewSecureDiceSource() DiceSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic("failed to seed dice source: " + err.Error())
	}
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededDiceSource returns a deterministic source for simulations and tests
func NewSeededDiceSource(seed uint64) DiceSource {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], seed)
	return &lockedSource{rng: rand.New(rand.NewChaCha8(b))}
}

// triplesBySide lists every (d1,d2,d3) grouped by the side its total lands on.
// Each side has 108 of the 216 combinations.
var triplesBySide = func() map[models.Side][][3]int {
	bySide := map[models.Side][][3]int{}
	for d1 := 1; d1 <= 6; d1++ {
		for d2 := 1; d2 <= 6; d2++ {
			for d3 := 1; d3 <= 6; d3++ {
				side := models.SideForTotal(d1 + d2 + d3)
				bySide[side] = append(bySide[side], [3]int{d1, d2, d3})
			}
		}
	}
	return bySide
}()

type outcomeResolver struct {
	dice DiceSource
}

// NewOutcomeResolver creates a resolver drawing dice from the given source
func NewOutcomeResolver(dice DiceSource) OutcomeResolver {
	return &outcomeResolver{dice: dice}
}

// Resolve picks the dice for a round. Precedence: manual override, auto-bias, fair roll.
func (r *outcomeResolver) Resolve(round *models.Round, exposure models.Exposure) (*models.Outcome, models.ResolutionPolicy) {
	if round.ManualResult != nil && round.ManualResult.Valid() {
		return r.rollForSide(*round.ManualResult), models.ResolutionPolicyManual
	}

	if round.AutoControlEnabled {
		if heavier, ok := exposure.Heavier(); ok && r.dice.IntN(100) < round.AutoLosePercent {
			log.WithFields(log.Fields{
				"round_id":      round.ID,
				"heavier_side":  heavier,
				"high_exposure": exposure.High,
				"low_exposure":  exposure.Low,
			}).Debug("Auto control forcing heavier side to lose")
			return r.rollForSide(heavier.Opposite()), models.ResolutionPolicyAutoBias
		}
	}

	return r.rollFair(), models.ResolutionPolicyFair
}

func (r *outcomeResolver) rollFair() *models.Outcome {
	d1, d2, d3 := r.dice.IntN(6)+1, r.dice.IntN(6)+1, r.dice.IntN(6)+1
	outcome, _ := models.NewOutcome(d1, d2, d3)
	return outcome
}

// rollForSide samples uniformly among the triples that produce the wanted side
func (r *outcomeResolver) rollForSide(side models.Side) *models.Outcome {
	candidates := triplesBySide[side]
	t := candidates[r.dice.IntN(len(candidates))]
	outcome, _ := models.NewOutcome(t[0], t[1], t[2])
	return outcome
}
