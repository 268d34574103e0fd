package filepack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"filexfer/internal/xferpkt"
)

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestPackSplitsIntoFixedSizeChunksWithShortLast(t *testing.T) {
	path := writeTempFile(t, 2500)
	packets := Pack(1, path)

	assert.Len(t, packets, 3)
	assert.Equal(t, uint32(xferpkt.PacketSize), packets[0].DataLength)
	assert.Equal(t, uint32(xferpkt.PacketSize), packets[1].DataLength)
	assert.Equal(t, uint32(500), packets[2].DataLength)
	for i, p := range packets {
		assert.Equal(t, uint32(i), p.SequenceNo)
		assert.Equal(t, uint32(i)*xferpkt.PacketSize, p.FileOffset)
		assert.Equal(t, uint32(1), p.SessionID)
	}
}

func TestPackMissingFileReturnsEmpty(t *testing.T) {
	packets := Pack(1, filepath.Join(t.TempDir(), "missing.bin"))
	assert.Empty(t, packets)
}

func TestUnpackReassemblesInOrder(t *testing.T) {
	original := writeTempFile(t, 2500)
	want, err := os.ReadFile(original)
	assert.NoError(t, err)

	packets := Pack(1, original)
	out := filepath.Join(t.TempDir(), "out.bin")
	assert.NoError(t, Unpack(packets, out))

	got, err := os.ReadFile(out)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}
