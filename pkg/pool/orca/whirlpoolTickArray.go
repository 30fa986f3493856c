package orca

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// ErrTickArraySequence is returned when a swap walks past the loaded tick arrays.
var ErrTickArraySequence = errors.New("invalid tick array sequence")

// WhirlpoolTickArray mirrors the on-chain TickArray account.
//
// Layout (9988 bytes):
//
//	discriminator     [8]u8
//	start_tick_index  i32
//	ticks             [Tick; 88]  (113 bytes each)
//	whirlpool         Pubkey
type WhirlpoolTickArray struct {
	Address        solana.PublicKey
	StartTickIndex int32
	Ticks          [TICK_ARRAY_SIZE]WhirlpoolTick
	Whirlpool      solana.PublicKey
}

// WhirlpoolTick is a single tick inside a tick array.
type WhirlpoolTick struct {
	Initialized          bool
	LiquidityNet         *big.Int // i128
	LiquidityGross       uint128.Uint128
	FeeGrowthOutsideA    uint128.Uint128
	FeeGrowthOutsideB    uint128.Uint128
	RewardGrowthsOutside [3]uint128.Uint128
}

// Decode parses Whirlpool tick array data
func (t *WhirlpoolTickArray) Decode(data []byte) error {
	if len(data) < TICK_ARRAY_ACCOUNT_SIZE {
		return fmt.Errorf("tick array data too short: %d < %d", len(data), TICK_ARRAY_ACCOUNT_SIZE)
	}
	decoder := bin.NewBinDecoder(data)

	var discriminator [8]byte
	if err := decoder.Decode(&discriminator); err != nil {
		return fmt.Errorf("failed to decode discriminator: %w", err)
	}
	if discriminator != TickArrayDiscriminator {
		return fmt.Errorf("account is not a tick array (discriminator %v)", discriminator)
	}

	if err := decoder.Decode(&t.StartTickIndex); err != nil {
		return fmt.Errorf("failed to decode start tick index: %w", err)
	}

	for i := 0; i < TICK_ARRAY_SIZE; i++ {
		raw, err := decoder.ReadNBytes(TICK_SIZE)
		if err != nil {
			return fmt.Errorf("failed to decode tick %d: %w", i, err)
		}
		t.Ticks[i] = decodeTick(raw)
	}

	if err := decoder.Decode(&t.Whirlpool); err != nil {
		return fmt.Errorf("failed to decode whirlpool: %w", err)
	}
	return nil
}

func decodeTick(raw []byte) WhirlpoolTick {
	tick := WhirlpoolTick{
		Initialized:       raw[0] != 0,
		LiquidityNet:      int128FromLE(raw[1:17]),
		LiquidityGross:    uint128.FromBytes(raw[17:33]),
		FeeGrowthOutsideA: uint128.FromBytes(raw[33:49]),
		FeeGrowthOutsideB: uint128.FromBytes(raw[49:65]),
	}
	for i := 0; i < 3; i++ {
		off := 65 + i*16
		tick.RewardGrowthsOutside[i] = uint128.FromBytes(raw[off : off+16])
	}
	return tick
}

// int128FromLE decodes a little-endian two's complement i128.
func int128FromLE(b []byte) *big.Int {
	v := uint128.FromBytes(b).Big()
	if b[15]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

// ticksInArray returns the tick range covered by one array.
func ticksInArray(tickSpacing uint16) int32 {
	return int32(tickSpacing) * TICK_ARRAY_SIZE
}

// floorDivision implements integer division rounding towards negative infinity
func floorDivision(dividend, divisor int32) int32 {
	if (dividend < 0) != (divisor < 0) && dividend%divisor != 0 {
		return dividend/divisor - 1
	}
	return dividend / divisor
}

// TickArrayStartIndex returns the start index of the array holding tickIndex,
// moved by offset whole arrays.
// Reference: whirlpools/legacy-sdk/whirlpool/src/utils/public/tick-utils.ts getStartTickIndex
func TickArrayStartIndex(tickIndex int32, tickSpacing uint16, offset int32) (int32, error) {
	if tickSpacing == 0 {
		return 0, fmt.Errorf("tick spacing must be non-zero")
	}
	size := ticksInArray(tickSpacing)
	start := (floorDivision(tickIndex, size) + offset) * size

	minTickIndex := MIN_TICK - ((MIN_TICK % size) + size)
	if start < minTickIndex {
		return 0, fmt.Errorf("start tick index %d below minimum %d", start, minTickIndex)
	}
	if start > MAX_TICK {
		return 0, fmt.Errorf("start tick index %d above maximum %d", start, MAX_TICK)
	}
	return start, nil
}

// TickArrayStartIndexes returns the three start indexes a swap in the given
// direction needs, ordered [current, next, next+1]. B->A shifts the current
// tick by one spacing before locating the first array. Near the price bounds
// the last valid index is repeated so the window always has three entries.
// Reference: whirlpools/legacy-sdk/whirlpool/src/utils/public/swap-utils.ts getTickArrayPublicKeys
func TickArrayStartIndexes(tickCurrentIndex int32, tickSpacing uint16, aToB bool) ([3]int32, error) {
	var out [3]int32
	shift := int32(0)
	step := int32(-1)
	if !aToB {
		shift = int32(tickSpacing)
		step = 1
	}

	offset := int32(0)
	for i := 0; i < 3; i++ {
		start, err := TickArrayStartIndex(tickCurrentIndex+shift, tickSpacing, offset)
		if err != nil {
			if i == 0 {
				return out, fmt.Errorf("failed to calculate start index for tick_array0: %w", err)
			}
			out[i] = out[i-1]
		} else {
			out[i] = start
		}
		offset += step
	}
	return out, nil
}

// DeriveWhirlpoolTickArrayPDA derives PDA address for Whirlpool tick array
// seeds = ["tick_array", whirlpool, start_tick_index.to_string()]
func DeriveWhirlpoolTickArrayPDA(programID, whirlpool solana.PublicKey, startTickIndex int32) (solana.PublicKey, error) {
	seeds := [][]byte{
		[]byte(TICK_ARRAY_SEED),
		whirlpool.Bytes(),
		[]byte(strconv.FormatInt(int64(startTickIndex), 10)),
	}
	pda, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find program address for tick array: %w", err)
	}
	return pda, nil
}

// DeriveMultipleWhirlpoolTickArrayPDAs derives the three tick arrays a swap traverses.
func DeriveMultipleWhirlpoolTickArrayPDAs(programID, whirlpool solana.PublicKey, tickCurrentIndex int32, tickSpacing uint16, aToB bool) ([3]solana.PublicKey, error) {
	var out [3]solana.PublicKey
	starts, err := TickArrayStartIndexes(tickCurrentIndex, tickSpacing, aToB)
	if err != nil {
		return out, err
	}
	for i, start := range starts {
		pda, err := DeriveWhirlpoolTickArrayPDA(programID, whirlpool, start)
		if err != nil {
			return out, fmt.Errorf("failed to derive tick_array%d: %w", i, err)
		}
		out[i] = pda
	}
	return out, nil
}

// DeriveWhirlpoolOraclePDA derives PDA address for Whirlpool Oracle
// seeds = ["oracle", whirlpool]
func DeriveWhirlpoolOraclePDA(programID, whirlpool solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{
		[]byte(ORACLE_SEED),
		whirlpool.Bytes(),
	}
	pda, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find program address for oracle: %w", err)
	}
	return pda, nil
}

// tickOffset returns the slot of tickIndex inside the array (may fall outside [0, 88)).
func (t *WhirlpoolTickArray) tickOffset(tickIndex int32, tickSpacing uint16) int32 {
	return floorDivision(tickIndex-t.StartTickIndex, int32(tickSpacing))
}

// inSearchRange reports whether tickIndex can be searched from this array.
// A shifted range accepts the tick just below the array for b->a searches.
func (t *WhirlpoolTickArray) inSearchRange(tickIndex int32, tickSpacing uint16, shifted bool) bool {
	lower := t.StartTickIndex
	upper := t.StartTickIndex + ticksInArray(tickSpacing)
	if shifted {
		lower -= int32(tickSpacing)
		upper -= int32(tickSpacing)
	}
	return tickIndex >= lower && tickIndex < upper
}

func (t *WhirlpoolTickArray) isMinTickArray() bool {
	return t.StartTickIndex <= MIN_TICK
}

func (t *WhirlpoolTickArray) isMaxTickArray(tickSpacing uint16) bool {
	return t.StartTickIndex+ticksInArray(tickSpacing) > MAX_TICK
}

// nextInitializedTick searches this array for the next initialized tick in
// the swap direction. ok is false when none is found inside the array.
func (t *WhirlpoolTickArray) nextInitializedTick(tickIndex int32, tickSpacing uint16, aToB bool) (int32, bool, error) {
	if !t.inSearchRange(tickIndex, tickSpacing, !aToB) {
		return 0, false, fmt.Errorf("%w: tick %d outside array starting at %d", ErrTickArraySequence, tickIndex, t.StartTickIndex)
	}
	offset := t.tickOffset(tickIndex, tickSpacing)
	// a->b may land on the current slot; b->a starts one slot to the right
	if !aToB {
		offset++
	}
	for offset >= 0 && offset < TICK_ARRAY_SIZE {
		if t.Ticks[offset].Initialized {
			return t.StartTickIndex + offset*int32(tickSpacing), true, nil
		}
		if aToB {
			offset--
		} else {
			offset++
		}
	}
	return 0, false, nil
}

// tick returns the tick stored at tickIndex.
func (t *WhirlpoolTickArray) tick(tickIndex int32, tickSpacing uint16) (*WhirlpoolTick, error) {
	if tickIndex%int32(tickSpacing) != 0 {
		return nil, fmt.Errorf("tick %d is not a multiple of spacing %d", tickIndex, tickSpacing)
	}
	offset := t.tickOffset(tickIndex, tickSpacing)
	if offset < 0 || offset >= TICK_ARRAY_SIZE {
		return nil, fmt.Errorf("%w: tick %d not in array starting at %d", ErrTickArraySequence, tickIndex, t.StartTickIndex)
	}
	return &t.Ticks[offset], nil
}

// TickSequence is the ordered window of tick arrays a swap may cross.
type TickSequence struct {
	arrays      []*WhirlpoolTickArray
	tickSpacing uint16
}

// NewTickSequence keeps arrays up to the first missing one; the first must be present.
func NewTickSequence(tickSpacing uint16, arrays ...*WhirlpoolTickArray) (*TickSequence, error) {
	if len(arrays) == 0 || arrays[0] == nil {
		return nil, fmt.Errorf("%w: primary tick array missing", ErrTickArraySequence)
	}
	seq := &TickSequence{tickSpacing: tickSpacing}
	for _, ta := range arrays {
		if ta == nil {
			break
		}
		seq.arrays = append(seq.arrays, ta)
	}
	return seq, nil
}

// Len returns the number of loaded arrays.
func (s *TickSequence) Len() int { return len(s.arrays) }

// nextInitializedTickIndex walks the sequence from arrayIndex and returns the
// array holding the next tick to cross and its index.
// Reference: whirlpools/programs/whirlpool/src/util/swap_tick_sequence.rs
func (s *TickSequence) nextInitializedTickIndex(tickIndex int32, aToB bool, arrayIndex int) (int, int32, error) {
	size := ticksInArray(s.tickSpacing)
	search := tickIndex
	for arrayIndex < len(s.arrays) {
		ta := s.arrays[arrayIndex]
		next, ok, err := ta.nextInitializedTick(search, s.tickSpacing, aToB)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			return arrayIndex, next, nil
		}
		if aToB && ta.isMinTickArray() {
			return arrayIndex, MIN_TICK, nil
		}
		if !aToB && ta.isMaxTickArray(s.tickSpacing) {
			return arrayIndex, MAX_TICK, nil
		}
		if arrayIndex+1 == len(s.arrays) {
			if aToB {
				return arrayIndex, ta.StartTickIndex, nil
			}
			return arrayIndex, ta.StartTickIndex + (TICK_ARRAY_SIZE-1)*int32(s.tickSpacing), nil
		}
		if aToB {
			search = ta.StartTickIndex - 1
		} else {
			search = ta.StartTickIndex + size - 1
		}
		arrayIndex++
	}
	return 0, 0, fmt.Errorf("%w: array index %d out of range", ErrTickArraySequence, arrayIndex)
}

// tick returns the tick at tickIndex in the array at arrayIndex.
// Tick indexes at the protocol bounds are never initialized.
func (s *TickSequence) tick(arrayIndex int, tickIndex int32) (*WhirlpoolTick, error) {
	if arrayIndex >= len(s.arrays) {
		return nil, fmt.Errorf("%w: array index %d out of range", ErrTickArraySequence, arrayIndex)
	}
	if tickIndex == MIN_TICK || tickIndex == MAX_TICK {
		return &WhirlpoolTick{LiquidityNet: new(big.Int)}, nil
	}
	return s.arrays[arrayIndex].tick(tickIndex, s.tickSpacing)
}
