package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// GenesisPrevHash is the previous-hash sentinel of block 0.
const GenesisPrevHash = "0"

// Block is one mined entry of the hash-linked chain. Blocks are immutable
// once appended; the chain owner never mutates a block in place.
type Block struct {
	Index        uint64       `json:"index"`
	Transactions []VoteRecord `json:"transactions"`
	CreatedAt    int64        `json:"created_at"`
	PrevHash     string       `json:"previous_hash"`
	Nonce        uint64       `json:"nonce"`
	Hash         string       `json:"hash"`
}

// NewBlock constructs an unmined candidate block. The caller must run Mine
// before appending it to a chain.
func NewBlock(index uint64, transactions []VoteRecord, prevHash string) *Block {
	return &Block{
		Index:        index,
		Transactions: transactions,
		CreatedAt:    time.Now().Unix(),
		PrevHash:     prevHash,
	}
}

// blockDigest is the canonical serialization used for hashing. The field
// order is fixed by the struct declaration, so the same logical content
// always produces the same digest.
type blockDigest struct {
	Index        uint64       `json:"index"`
	Transactions []VoteRecord `json:"transactions"`
	CreatedAt    int64        `json:"created_at"`
	PrevHash     string       `json:"previous_hash"`
	Nonce        uint64       `json:"nonce"`
}

// CalculateHash recomputes the block's digest from its stored fields.
// The stored Hash field itself is not part of the digest.
func (b *Block) CalculateHash() string {
	data, _ := json.Marshal(blockDigest{
		Index:        b.Index,
		Transactions: b.Transactions,
		CreatedAt:    b.CreatedAt,
		PrevHash:     b.PrevHash,
		Nonce:        b.Nonce,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Mine searches for a nonce whose digest carries at least difficulty leading
// zero hex characters. maxAttempts caps the search when non-zero; Mine
// reports false if the cap is exhausted, leaving the block unmined.
func (b *Block) Mine(difficulty uint8, maxAttempts uint64) bool {
	prefix := strings.Repeat("0", int(difficulty))

	b.Nonce = 0
	for attempts := uint64(0); ; attempts++ {
		if maxAttempts > 0 && attempts >= maxAttempts {
			return false
		}

		b.Hash = b.CalculateHash()
		if strings.HasPrefix(b.Hash, prefix) {
			return true
		}
		b.Nonce++
	}
}

// Validate reports whether the stored hash matches the recomputed digest.
func (b *Block) Validate() bool {
	return b.Hash == b.CalculateHash()
}

// MeetsDifficulty reports whether the stored hash satisfies the given
// proof-of-work target.
func (b *Block) MeetsDifficulty(difficulty uint8) bool {
	return strings.HasPrefix(b.Hash, strings.Repeat("0", int(difficulty)))
}
