package utils

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeLaunchID derives the content-addressed launch identity:
// keccak256(creator ‖ symbol ‖ nonce ‖ createdAt). No sequential counter is
// involved, so independently operating coordinators derive the same id.
func ComputeLaunchID(creator, symbol string, nonce uint64, createdAtUnix int64) string {
	var nonceBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(createdAtUnix))

	hash := crypto.Keccak256(
		[]byte(NormalizeAddress(creator)),
		[]byte(symbol),
		nonceBuf[:],
		tsBuf[:],
	)
	return hexutil.Encode(hash)
}

// DeploySalt derives the deterministic per-chain deployment salt:
// keccak256(launchId ‖ chainId). Wall-clock independent, so repeated
// dispatch attempts for the same key always produce the same predictable
// deployment address.
func DeploySalt(launchID string, chainID int64) string {
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], uint64(chainID))

	hash := crypto.Keccak256([]byte(launchID), chainBuf[:])
	return hexutil.Encode(hash)
}
