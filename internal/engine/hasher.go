package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"VaultLedger/internal/vault"
)

const genesisHashSeed = "VaultLedger:genesis:v1"

// StateHasher chains a deterministic hash over applied operations:
// hash[N] = SHA-256(hash[N-1] || sequence || state digest). Two engines fed
// the same operations at the same clock produce identical chains, which is
// how replica divergence and bad replays are caught.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	h := &StateHasher{}
	h.prevHash = sha256.Sum256([]byte(genesisHashSeed))
	return h
}

// RestoreStateHasher resumes a chain from a snapshot-stored hex hash.
// An empty or malformed value restarts from genesis.
func RestoreStateHasher(hexHash string) *StateHasher {
	h := NewStateHasher()
	decoded, err := hex.DecodeString(hexHash)
	if err == nil && len(decoded) == 32 {
		copy(h.prevHash[:], decoded)
	}
	return h
}

// Advance folds one applied operation into the chain and returns the new
// chain head.
func (h *StateHasher) Advance(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])
	hasher.Write(stateDigest)

	copy(h.prevHash[:], hasher.Sum(nil))
	return h.prevHash
}

// Current returns the chain head.
func (h *StateHasher) Current() [32]byte {
	return h.prevHash
}

// CurrentHex returns the chain head as lowercase hex.
func (h *StateHasher) CurrentHex() string {
	return hex.EncodeToString(h.prevHash[:])
}

// digestOperation encodes the post-operation vault state and fee state into
// a fixed-width binary digest. Field order is part of the chain format; do
// not reorder.
func digestOperation(snap *vault.Snapshot, fee vault.FeeStateSnapshot) []byte {
	buf := make([]byte, 0, 80+8*16)
	put := func(v int64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		buf = append(buf, b[:]...)
	}

	put(fee.Rate)
	put(fee.FrozenIndex)
	put(fee.FrozenTimestamp)

	if snap == nil {
		put(0)
		return buf
	}
	put(1)
	put(int64(snap.ID))
	put(snap.DebtPrincipal)
	put(snap.AccruedFee)
	put(snap.FeeIndexSnapshot)
	put(snap.SnapshotTimestamp)
	put(snap.Version)
	put(int64(len(snap.Units)))
	for _, u := range snap.Units {
		put(int64(u))
	}
	return buf
}
