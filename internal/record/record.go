// Package record implements the byte-exact persisted layouts for platform
// and bet records. Fields are packed little-endian in declaration order with
// no padding, matching the on-chain account data this engine must stay
// compatible with. The Redis cache stores these blobs; the record key is the
// storage identity, so bet IDs are not part of the layout.
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/moonflip/settlement-engine/internal/model"
)

// Encoded sizes in bytes.
const (
	PlatformSize = 32 + 32 + 2 + 8 + 8 + 8 + 8 + 1  // 99
	BetSize      = 32 + 8 + 1 + 32 + 8 + 8 + 8 + 8 + 1 + 1 + 8 // 115
)

// MarshalPlatform encodes a platform record into its 99-byte layout.
func MarshalPlatform(p *model.Platform) []byte {
	buf := make([]byte, PlatformSize)
	off := 0

	off += copy(buf[off:], p.Admin[:])
	off += copy(buf[off:], p.HouseWallet[:])
	binary.LittleEndian.PutUint16(buf[off:], p.HouseFeeBps)
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], p.MinBet)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.MaxBet)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.TotalBets)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], p.TotalVolume)
	off += 8
	buf[off] = encodeBool(p.IsActive)

	return buf
}

// UnmarshalPlatform decodes a 99-byte platform record.
func UnmarshalPlatform(data []byte) (*model.Platform, error) {
	if len(data) != PlatformSize {
		return nil, fmt.Errorf("record: platform record must be %d bytes, got %d", PlatformSize, len(data))
	}

	var p model.Platform
	off := 0

	off += copy(p.Admin[:], data[off:])
	off += copy(p.HouseWallet[:], data[off:])
	p.HouseFeeBps = binary.LittleEndian.Uint16(data[off:])
	off += 2
	p.MinBet = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.MaxBet = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.TotalBets = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.TotalVolume = binary.LittleEndian.Uint64(data[off:])
	off += 8
	p.IsActive = data[off] != 0

	return &p, nil
}

// MarshalBet encodes a bet record into its 115-byte layout.
func MarshalBet(b *model.Bet) []byte {
	buf := make([]byte, BetSize)
	off := 0

	off += copy(buf[off:], b.Player[:])
	binary.LittleEndian.PutUint64(buf[off:], b.Amount)
	off += 8
	buf[off] = encodeBool(b.Prediction)
	off++
	off += copy(buf[off:], b.TokenMint[:])
	binary.LittleEndian.PutUint64(buf[off:], uint64(b.StartTime))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(b.EndTime))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], b.StartPrice)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], b.EndPrice)
	off += 8
	buf[off] = encodeBool(b.Settled())
	off++
	buf[off] = encodeBool(b.IsWinner)
	off++
	binary.LittleEndian.PutUint64(buf[off:], b.Payout)

	return buf
}

// UnmarshalBet decodes a 115-byte bet record. The caller supplies the ID,
// which is the storage key rather than part of the layout.
func UnmarshalBet(id string, data []byte) (*model.Bet, error) {
	if len(data) != BetSize {
		return nil, fmt.Errorf("record: bet record must be %d bytes, got %d", BetSize, len(data))
	}

	b := model.Bet{ID: id, Status: model.StatusOpen}
	off := 0

	off += copy(b.Player[:], data[off:])
	b.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	b.Prediction = data[off] != 0
	off++
	off += copy(b.TokenMint[:], data[off:])
	b.StartTime = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	b.EndTime = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	b.StartPrice = binary.LittleEndian.Uint64(data[off:])
	off += 8
	b.EndPrice = binary.LittleEndian.Uint64(data[off:])
	off += 8
	if data[off] != 0 {
		b.Status = model.StatusSettled
	}
	off++
	b.IsWinner = data[off] != 0
	off++
	b.Payout = binary.LittleEndian.Uint64(data[off:])

	return &b, nil
}

func encodeBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}
