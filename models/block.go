package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

// Block is one entry of the local append-only ledger. Data holds a single
// JSON encoded transaction.
type Block struct {
	Index      uint64 `json:"index"`
	Timestamp  int64  `json:"timestamp"`
	Data       []byte `json:"data"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
	Nonce      uint64 `json:"nonce"`
	Difficulty uint8  `json:"difficulty"` // Number of leading zero bytes required
}

func NewBlock(index uint64, data []byte, prevHash []byte, difficulty uint8) *Block {
	block := &Block{
		Index:      index,
		Timestamp:  time.Now().UnixNano(),
		Data:       data,
		PrevHash:   prevHash,
		Difficulty: difficulty,
	}

	block.Mine()
	return block
}

func (b *Block) Mine() {
	target := make([]byte, b.Difficulty)
	var nonce uint64
	for {
		b.Nonce = nonce
		b.Hash = b.calculateHash()

		if bytes.HasPrefix(b.Hash, target) {
			return
		}

		nonce++
		if nonce%1000 == 0 {
			time.Sleep(time.Microsecond)
		}
	}
}

func (b *Block) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	buffer.Write(b.Data)
	buffer.Write(b.PrevHash)
	binary.Write(buffer, binary.BigEndian, b.Nonce)

	d := sha3.NewLegacyKeccak256()
	d.Write(buffer.Bytes())
	return d.Sum(nil)
}

func (b *Block) Validate() bool {
	calculatedHash := b.calculateHash()
	if !bytes.Equal(calculatedHash, b.Hash) {
		return false
	}

	target := make([]byte, b.Difficulty)
	return bytes.HasPrefix(calculatedHash, target)
}

// ValidateChain checks hashes, links, indexes and timestamp ordering of the
// whole chain. It returns the first problem found.
func ValidateChain(blocks []*Block) error {
	for i, block := range blocks {
		if !block.Validate() {
			return fmt.Errorf("block %d has invalid hash", i)
		}
		if i == 0 {
			continue
		}

		previous := blocks[i-1]
		if !bytes.Equal(block.PrevHash, previous.Hash) {
			return fmt.Errorf("block %d has invalid previous hash link", i)
		}
		if block.Index != previous.Index+1 {
			return fmt.Errorf("block %d has invalid index", i)
		}
		if block.Timestamp < previous.Timestamp {
			return fmt.Errorf("block %d has invalid timestamp", i)
		}
	}

	return nil
}
