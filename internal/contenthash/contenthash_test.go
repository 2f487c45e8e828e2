package contenthash

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestSum(t *testing.T) {
	sum, n, err := Sum(strings.NewReader("abc"))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
	require.True(t, Valid(sum))

	require.Equal(t, sum, SumBytes([]byte("abc")))
	require.NotEqual(t, sum, SumBytes([]byte("abd")))
}

func TestSum_EmptyInput(t *testing.T) {
	sum, n, err := Sum(strings.NewReader(""))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
}

func TestSum_ReadError(t *testing.T) {
	_, _, err := Sum(failingReader{})
	require.ErrorContains(t, err, "disk gone")
}

func TestValid(t *testing.T) {
	require.False(t, Valid(""))
	require.False(t, Valid(strings.Repeat("A", HexLen)))
	require.False(t, Valid(strings.Repeat("a", HexLen-1)))
	require.True(t, Valid(strings.Repeat("0", HexLen)))
}
