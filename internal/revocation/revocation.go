// Package revocation builds and refreshes non-revocation witnesses from a
// tails accessor, indexing the resulting states by (rev_reg_def_id,
// timestamp). The accumulator is a static RSA-style accumulator (Benaloh/
// de Mare, with membership witnesses for non-revoked credentials):
// each credential's revocation index is assigned a distinct prime by the
// tails accessor, and the accumulator/witness are products of those
// primes exponentiated onto a fixed generator modulo the registry's
// public modulus. Unlike the trapdoor-free batch-update schemes real
// anoncreds deployments use, this recomputes a witness from the full
// non-revoked index set every time rather than applying an incremental
// delta — simpler, and sufficient since this package is never asked to
// update a witness without the full current state in hand.
package revocation

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jellydator/ttlcache/v3"

	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

// Delta is the non-revoked index set effective at the timestamp a
// revocation state is being built for.
type Delta struct {
	NonRevoked []int64
}

func (d Delta) contains(index int64) bool {
	for _, v := range d.NonRevoked {
		if v == index {
			return true
		}
	}
	return false
}

// TailsAccessor supplies the prime assigned to one credential's revocation
// index within a registry's tails file.
type TailsAccessor interface {
	ReadPrime(ctx context.Context, def types.RevRegDef, index int64) (*big.Int, error)
}

// StaticTailsAccessor is a reference TailsAccessor deriving each index's
// prime deterministically from the registry id, rather than reading a real
// tails file. Suitable for tests and the demo server; a production
// deployment supplies a TailsAccessor backed by the actual tails file
// format and location.
type StaticTailsAccessor struct{}

func (StaticTailsAccessor) ReadPrime(_ context.Context, def types.RevRegDef, index int64) (*big.Int, error) {
	return primeForIndex(def.ID, index), nil
}

func primeForIndex(seed string, index int64) *big.Int {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, index)))
	candidate := new(big.Int).SetBytes(h[:])
	candidate.SetBit(candidate, 0, 1)
	two := big.NewInt(2)
	for !candidate.ProbablyPrime(20) {
		candidate.Add(candidate, two)
	}
	return candidate
}

// CachingTailsAccessor wraps a TailsAccessor with an in-process byte cache
// keyed by (rev_reg_def_id, tails_hash, index), avoiding repeated tails
// reads for a witness-refresh burst over the same registry.
type CachingTailsAccessor struct {
	underlying TailsAccessor
	cache      *gocache.Cache
}

// NewCachingTailsAccessor wraps underlying with a 30-minute-TTL cache.
func NewCachingTailsAccessor(underlying TailsAccessor) *CachingTailsAccessor {
	return &CachingTailsAccessor{
		underlying: underlying,
		cache:      gocache.New(30*time.Minute, time.Hour),
	}
}

func (c *CachingTailsAccessor) ReadPrime(ctx context.Context, def types.RevRegDef, index int64) (*big.Int, error) {
	key := fmt.Sprintf("%s:%s:%d", def.ID, def.TailsHash, index)
	if v, ok := c.cache.Get(key); ok {
		return new(big.Int).SetBytes(v.([]byte)), nil
	}
	prime, err := c.underlying.ReadPrime(ctx, def, index)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, prime.Bytes(), gocache.DefaultExpiration)
	return prime, nil
}

func cacheKey(revRegDefID string, timestamp int64) string {
	return fmt.Sprintf("%s@%d", revRegDefID, timestamp)
}

// Manager builds and caches revocation states.
type Manager struct {
	tails  TailsAccessor
	states *ttlcache.Cache[string, types.RevocationState]
}

// NewManager builds a Manager whose built states expire from cache after
// ttl (they can always be rebuilt from tails + delta; the cache only saves
// recomputation).
func NewManager(tails TailsAccessor, ttl time.Duration) *Manager {
	return &Manager{
		tails:  tails,
		states: ttlcache.New[string, types.RevocationState](ttlcache.WithTTL[string, types.RevocationState](ttl)),
	}
}

// BuildState computes (or returns the cached) revocation state for def at
// timestamp, given the non-revoked index set delta and the credential's
// own revocation index credRevID. Fails with InvalidUserRevocId if
// credRevID is not a member of delta (the credential's own index must
// remain non-revoked to build a witness for it).
func (m *Manager) BuildState(ctx context.Context, def types.RevRegDef, delta Delta, timestamp int64, credRevID int64) (*types.RevocationState, error) {
	if !delta.contains(credRevID) {
		return nil, helpers.ErrInvalidUserRevocID
	}

	key := cacheKey(def.ID, timestamp)
	if item := m.states.Get(key); item != nil {
		state := item.Value()
		return &state, nil
	}

	n, ok := new(big.Int).SetString(def.Value.AccumModulus, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	g, ok := new(big.Int).SetString(def.Value.AccumGenerator, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}

	accExp := big.NewInt(1)
	witExp := big.NewInt(1)
	for _, idx := range delta.NonRevoked {
		prime, err := m.tails.ReadPrime(ctx, def, idx)
		if err != nil {
			return nil, err
		}
		accExp.Mul(accExp, prime)
		if idx != credRevID {
			witExp.Mul(witExp, prime)
		}
	}

	accum := new(big.Int).Exp(g, accExp, n)
	witness := new(big.Int).Exp(g, witExp, n)

	state := types.RevocationState{
		RevReg:    types.RevRegState{Accum: accum.String()},
		Witness:   types.Witness{OmegaDenom: witness.String()},
		Timestamp: timestamp,
	}
	m.states.Set(key, state, ttlcache.DefaultTTL)
	return &state, nil
}

// CheckMembership recomputes accum from witness and credRevID's own prime,
// reporting whether witness^prime == accum (mod n): the defining relation
// that holds precisely when credRevID's index contributed to accum, i.e.
// the credential was non-revoked when the state was built.
func (m *Manager) CheckMembership(ctx context.Context, def types.RevRegDef, state types.RevocationState, credRevID int64) (bool, error) {
	n, ok := new(big.Int).SetString(def.Value.AccumModulus, 10)
	if !ok {
		return false, helpers.ErrInvalidStructure
	}
	witness, ok := new(big.Int).SetString(state.Witness.OmegaDenom, 10)
	if !ok {
		return false, helpers.ErrInvalidStructure
	}
	accum, ok := new(big.Int).SetString(state.RevReg.Accum, 10)
	if !ok {
		return false, helpers.ErrInvalidStructure
	}
	prime, err := m.tails.ReadPrime(ctx, def, credRevID)
	if err != nil {
		return false, err
	}
	recomputed := new(big.Int).Exp(witness, prime, n)
	return recomputed.Cmp(accum) == 0, nil
}
