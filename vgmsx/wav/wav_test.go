package wav

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, samples []int16) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, 44100)
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(samples))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestWriter_HeaderLayout(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	data := writeTestWAV(t, samples)

	require.Len(t, data, headerSize+len(samples)*2)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, "data", string(data[36:40]))

	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]), "fmt chunk size")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(88200), binary.LittleEndian.Uint32(data[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]), "bits per sample")
}

func TestWriter_SizesPatchedOnClose(t *testing.T) {
	samples := make([]int16, 1000)
	data := writeTestWAV(t, samples)

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	fileSize := binary.LittleEndian.Uint32(data[4:8])
	assert.Equal(t, uint32(2000), dataSize)
	assert.Equal(t, dataSize+headerSize-8, fileSize)
}

func TestWriter_SampleRoundTrip(t *testing.T) {
	samples := []int16{1, -1, 12345, -12345}
	data := writeTestWAV(t, samples)

	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(data[headerSize+i*2:]))
		assert.Equal(t, want, got, "sample %d", i)
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, 44100)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestFade_LinearRamp(t *testing.T) {
	buf := make([]int16, 4)
	for i := range buf {
		buf[i] = 3200
	}

	Fade(buf, 0, 32)
	assert.Equal(t, int16(3200), buf[0], "step 0 is full volume")

	for i := range buf {
		buf[i] = 3200
	}
	Fade(buf, 16, 32)
	assert.Equal(t, int16(1600), buf[0], "half way through is half volume")

	for i := range buf {
		buf[i] = 3200
	}
	Fade(buf, 32, 32)
	assert.Equal(t, int16(0), buf[0], "final step is silence")
}

func TestFade_NegativeSamples(t *testing.T) {
	buf := []int16{-3200}
	Fade(buf, 16, 32)
	assert.Equal(t, int16(-1600), buf[0])
}
