// internal/filesys/system_test.go
package filesys

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sungw5/lcfs/internal/bus/sim"
	"github.com/sungw5/lcfs/internal/cache"
	"github.com/sungw5/lcfs/internal/device"
	"github.com/sungw5/lcfs/internal/frame"
	"github.com/sungw5/lcfs/internal/fserr"
)

// two devices, ids 0 and 2 (probe mask 0b00101), 2x4 blocks each
func newSystem(t *testing.T, c cache.Cache, specs ...sim.DeviceSpec) (*System, *sim.Controller) {
	t.Helper()
	if len(specs) == 0 {
		specs = []sim.DeviceSpec{
			{ID: 0, Sectors: 2, Blocks: 4},
			{ID: 2, Sectors: 2, Blocks: 4},
		}
	}
	ctl, err := sim.New(specs)
	require.NoError(t, err)
	return New(ctl, Config{Cache: c}), ctl
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func blockReads(ctl *sim.Controller) int {
	n := 0
	for _, r := range ctl.Requests() {
		if r.Opcode == uint64(frame.OpBlockXfer) && r.Direction == uint64(frame.XferRead) {
			n++
		}
	}
	return n
}

func TestOpen_PowersOnLazily(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	require.False(t, fs.Powered())

	h, err := fs.Open("a.txt")
	require.NoError(t, err)
	require.Equal(t, 0, int(h))
	require.True(t, fs.Powered())
	require.True(t, ctl.Powered())

	_, err = fs.Open("a.txt")
	require.ErrorIs(t, err, fserr.ErrAlreadyOpen)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	data := pattern(1000, 7)
	n, err := fs.Write(h, data)
	require.NoError(t, err)
	require.Equal(t, 1000, n)

	pos, err := fs.Seek(h, 0)
	require.NoError(t, err)
	require.Zero(t, pos)

	got, err := fs.Read(h, 1000)
	require.NoError(t, err)
	require.Equal(t, data, got)

	st, ok := fs.Stat("f")
	require.True(t, ok)
	require.EqualValues(t, 1000, st.Length)
	require.EqualValues(t, 1000, st.Position)
}

func TestWrite_StripesAcrossDevices(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	data := pattern(300, 1)
	_, err = fs.Write(h, data)
	require.NoError(t, err)

	st, _ := fs.Stat("f")
	b0, ok := st.Block(0)
	require.True(t, ok)
	require.Equal(t, device.Address{Device: 0, Sector: 0, Block: 0}, b0)
	b1, ok := st.Block(1)
	require.True(t, ok)
	require.Equal(t, device.Address{Device: 2, Sector: 0, Block: 0}, b1)

	snap := fs.Snapshot()
	require.Equal(t, 2, snap.Used)
	require.Equal(t, 1, snap.Devices[0].Full)
	require.Equal(t, 1, snap.Devices[1].Allocated)

	raw, err := ctl.Peek(0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, data[:256], raw)
	raw, err = ctl.Peek(2, 0, 0)
	require.NoError(t, err)
	require.Equal(t, data[256:], raw[:44])
	require.Equal(t, make([]byte, 212), raw[44:])
}

func TestWrite_FullBlocksAlternate(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	_, err = fs.Write(h, pattern(4*256, 3))
	require.NoError(t, err)

	st, _ := fs.Stat("f")
	want := []device.Address{
		{Device: 0, Sector: 0, Block: 0},
		{Device: 2, Sector: 0, Block: 0},
		{Device: 0, Sector: 0, Block: 1},
		{Device: 2, Sector: 0, Block: 1},
	}
	for li, w := range want {
		got, ok := st.Block(uint64(li))
		require.True(t, ok)
		require.Equal(t, w, got, "logical block %d", li)
	}
	require.Equal(t, 4, fs.Snapshot().Devices[0].Full+fs.Snapshot().Devices[1].Full)
}

func TestWrite_ContinuesPartialBlock(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	// 256 + 44: second block lands on device 2 and stays partial
	_, err = fs.Write(h, pattern(300, 1))
	require.NoError(t, err)
	_, err = fs.Write(h, pattern(100, 2))
	require.NoError(t, err)

	st, _ := fs.Stat("f")
	b1, _ := st.Block(1)
	require.Equal(t, device.Address{Device: 2, Sector: 0, Block: 0}, b1)
	require.Equal(t, 2, st.Blocks())

	// fills the partial block, then the next fresh block stays on device 2
	_, err = fs.Write(h, pattern(200, 3))
	require.NoError(t, err)

	st, _ = fs.Stat("f")
	b2, ok := st.Block(2)
	require.True(t, ok)
	require.Equal(t, device.Address{Device: 2, Sector: 0, Block: 1}, b2)
	require.EqualValues(t, 600, st.Length)
	require.Equal(t, device.Full, fs.alloc.State(b1))
	require.Equal(t, device.Allocated, fs.alloc.State(b2))
}

func TestWrite_StraddlePreservesNeighbours(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	base := bytes.Repeat([]byte{'a'}, 512)
	_, err = fs.Write(h, base)
	require.NoError(t, err)

	_, err = fs.Seek(h, 250)
	require.NoError(t, err)
	n, err := fs.Write(h, bytes.Repeat([]byte{'b'}, 12))
	require.NoError(t, err)
	require.Equal(t, 12, n)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 512, st.Length)
	require.EqualValues(t, 262, st.Position)

	first, err := ctl.Peek(0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{'a'}, 250), first[:250])
	require.Equal(t, bytes.Repeat([]byte{'b'}, 6), first[250:])

	second, err := ctl.Peek(2, 0, 0)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{'b'}, 6), second[:6])
	require.Equal(t, bytes.Repeat([]byte{'a'}, 250), second[6:])

	// rewrites in place never allocate
	require.Equal(t, 2, fs.Snapshot().Used)
}

func TestWrite_FreshBlockKeepsExistingBytes(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	require.NoError(t, ctl.Poke(0, 0, 0, bytes.Repeat([]byte{'z'}, 256)))

	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("hello"))
	require.NoError(t, err)

	raw, err := ctl.Peek(0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), raw[:5])
	require.Equal(t, bytes.Repeat([]byte{'z'}, 251), raw[5:])
}

func TestWrite_OutOfSpace(t *testing.T) {
	fs, _ := newSystem(t, nil,
		sim.DeviceSpec{ID: 1, Sectors: 1, Blocks: 1},
		sim.DeviceSpec{ID: 3, Sectors: 1, Blocks: 1},
	)
	h, err := fs.Open("f")
	require.NoError(t, err)

	n, err := fs.Write(h, pattern(600, 0))
	require.ErrorIs(t, err, fserr.ErrOutOfSpace)
	require.Equal(t, 512, n)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 512, st.Length)
	require.EqualValues(t, 512, st.Position)
}

func TestWrite_FailureKeepsCommittedBytes(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	writes := 0
	ctl.FailWhen = func(f frame.Fields) bool {
		if f.Opcode == uint64(frame.OpBlockXfer) && f.Direction == uint64(frame.XferWrite) {
			writes++
			return writes == 2
		}
		return false
	}

	n, err := fs.Write(h, pattern(600, 9))
	require.ErrorIs(t, err, fserr.ErrProtocol)
	require.Equal(t, 256, n)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 256, st.Length)

	ctl.FailWhen = nil
	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 256)
	require.NoError(t, err)
	require.Equal(t, pattern(600, 9)[:256], got)
}

func TestRead_Bounds(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, pattern(10, 0))
	require.NoError(t, err)

	_, err = fs.Seek(h, 5)
	require.NoError(t, err)

	_, err = fs.Read(h, 6)
	require.ErrorIs(t, err, fserr.ErrInvalidArgument)
	_, err = fs.Read(h, -1)
	require.ErrorIs(t, err, fserr.ErrInvalidArgument)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 5, st.Position)

	got, err := fs.Read(h, 5)
	require.NoError(t, err)
	require.Equal(t, pattern(10, 0)[5:], got)

	got, err = fs.Read(h, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSeek_PastEndLeavesHole(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)

	_, err = fs.Seek(h, 600)
	require.NoError(t, err)
	_, err = fs.Read(h, 1)
	require.ErrorIs(t, err, fserr.ErrInvalidArgument)

	_, err = fs.Write(h, []byte{'x'})
	require.NoError(t, err)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 601, st.Length)
	require.Equal(t, 1, st.Blocks())
	require.Equal(t, 1, fs.Snapshot().Used)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 601)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 600), got[:600])
	require.Equal(t, byte('x'), got[600])
}

func TestReopen_TruncatesAndReusesBlocks(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, pattern(256, 1))
	require.NoError(t, err)

	require.NoError(t, fs.Close(h))
	require.ErrorIs(t, fs.Close(h), fserr.ErrAlreadyClosed)

	_, err = fs.Read(h, 1)
	require.ErrorIs(t, err, fserr.ErrInvalidHandle)

	h2, err := fs.Open("f")
	require.NoError(t, err)
	require.Equal(t, h, h2)

	st, _ := fs.Stat("f")
	require.Zero(t, st.Length)
	require.Zero(t, st.Position)

	_, err = fs.Write(h2, []byte("new"))
	require.NoError(t, err)
	require.Equal(t, 1, fs.Snapshot().Used)

	_, err = fs.Seek(h2, 0)
	require.NoError(t, err)
	got, err := fs.Read(h2, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}

func TestSeek_RequiresPower(t *testing.T) {
	fs, _ := newSystem(t, nil)

	_, err := fs.Seek(0, 10)
	require.ErrorIs(t, err, fserr.ErrNotPowered)

	h, err := fs.Open("f")
	require.NoError(t, err)
	require.NoError(t, fs.PowerOff())

	_, err = fs.Seek(h, 10)
	require.ErrorIs(t, err, fserr.ErrNotPowered)
	_, err = fs.Write(h, []byte{1})
	require.ErrorIs(t, err, fserr.ErrNotPowered)
}

func TestSeek_InvalidHandle(t *testing.T) {
	fs, _ := newSystem(t, nil)
	require.NoError(t, fs.PowerOn())

	_, err := fs.Seek(42, 0)
	require.ErrorIs(t, err, fserr.ErrInvalidHandle)
}

func TestPowerOn_ResetsFileTable(t *testing.T) {
	fs, _ := newSystem(t, nil)
	_, err := fs.Open("a")
	require.NoError(t, err)
	_, err = fs.Open("b")
	require.NoError(t, err)
	require.Len(t, fs.Files(), 2)

	require.NoError(t, fs.PowerOff())
	h, err := fs.Open("b")
	require.NoError(t, err)
	require.Equal(t, 0, int(h))
	require.Len(t, fs.Files(), 1)
}

func TestCache_ServesReads(t *testing.T) {
	lru := cache.NewLRU(8)
	fs, ctl := newSystem(t, lru)
	h, err := fs.Open("f")
	require.NoError(t, err)

	_, err = fs.Write(h, pattern(512, 4))
	require.NoError(t, err)
	before := blockReads(ctl)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 512)
	require.NoError(t, err)
	require.Equal(t, pattern(512, 4), got)

	require.Equal(t, before, blockReads(ctl))
	require.Positive(t, lru.Stats().Hits)

	require.NoError(t, fs.Shutdown())
	require.False(t, ctl.Powered())
}

func TestNopCache_ReadsDevice(t *testing.T) {
	fs, ctl := newSystem(t, cache.Nop{})
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, pattern(512, 4))
	require.NoError(t, err)
	before := blockReads(ctl)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	_, err = fs.Read(h, 512)
	require.NoError(t, err)
	require.Equal(t, before+2, blockReads(ctl))
}

func TestWrite_PastEndAfterReopenZeroFillsGap(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, bytes.Repeat([]byte{'a'}, 200))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	h, err = fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Seek(h, 100)
	require.NoError(t, err)
	_, err = fs.Write(h, []byte{'x'})
	require.NoError(t, err)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 101)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 100), got[:100])
	require.Equal(t, byte('x'), got[100])
}

func TestWrite_PastEndClearsWholeStaleBlocks(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, bytes.Repeat([]byte{'a'}, 600))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	h, err = fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Seek(h, 550)
	require.NoError(t, err)
	_, err = fs.Write(h, []byte{'y'})
	require.NoError(t, err)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 551)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 550), got[:550])
	require.Equal(t, byte('y'), got[550])

	// bytes past the write keep their old contents
	raw, err := ctl.Peek(0, 0, 1)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 38), raw[:38])
	require.Equal(t, byte('y'), raw[38])
	require.Equal(t, bytes.Repeat([]byte{'a'}, 49), raw[39:88])
}

func TestWrite_PastEndIntoFreshBlockHidesDeviceBytes(t *testing.T) {
	fs, ctl := newSystem(t, nil)
	require.NoError(t, ctl.Poke(0, 0, 0, bytes.Repeat([]byte{'z'}, 256)))

	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Seek(h, 10)
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("x"))
	require.NoError(t, err)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 11)
	require.NoError(t, err)
	require.Equal(t, append(make([]byte, 10), 'x'), got)
}

func TestWrite_RejectsPositionOverflow(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, bytes.Repeat([]byte{'a'}, 50))
	require.NoError(t, err)
	used := fs.Snapshot().Used

	_, err = fs.Seek(h, math.MaxUint64-3)
	require.NoError(t, err)
	n, err := fs.Write(h, []byte("12345678"))
	require.ErrorIs(t, err, fserr.ErrInvalidArgument)
	require.Zero(t, n)

	st, _ := fs.Stat("f")
	require.EqualValues(t, 50, st.Length)
	require.EqualValues(t, uint64(math.MaxUint64-3), st.Position)
	require.Equal(t, used, fs.Snapshot().Used)

	_, err = fs.Seek(h, 0)
	require.NoError(t, err)
	got, err := fs.Read(h, 50)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{'a'}, 50), got)
}

func TestStat_ReturnsDeepCopy(t *testing.T) {
	fs, _ := newSystem(t, nil)
	h, err := fs.Open("f")
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("abc"))
	require.NoError(t, err)

	st, ok := fs.Stat("f")
	require.True(t, ok)
	st.MapBlock(7, device.Address{Device: 9})
	st.LastBlock.Block = 99

	again, _ := fs.Stat("f")
	require.Equal(t, 1, again.Blocks())
	require.Equal(t, device.Address{Device: 0, Sector: 0, Block: 0}, *again.LastBlock)

	files := fs.Files()
	files[0].MapBlock(8, device.Address{Device: 9})
	again, _ = fs.Stat("f")
	require.Equal(t, 1, again.Blocks())
}
