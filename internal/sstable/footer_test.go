package sstable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFooterRoundTrip(t *testing.T) {
	f := NewFooter(BlockHandle{Offset: 10, Size: 20}, BlockHandle{Offset: 30, Size: 40})
	var buf [FooterSize]byte
	f.Encode(&buf)

	got, err := DecodeFooter(buf[:])
	require.NoError(t, err)
	require.Equal(t, f, got)
	require.True(t, got.ValidateMagic())
}

func TestFooterRejectsWrongSize(t *testing.T) {
	_, err := DecodeFooter(make([]byte, FooterSize-1))
	require.Error(t, err)
}

func TestFooterBadMagicDetected(t *testing.T) {
	f := NewFooter(BlockHandle{}, BlockHandle{})
	var buf [FooterSize]byte
	f.Encode(&buf)
	buf[FooterSize-1] ^= 0xff

	got, err := DecodeFooter(buf[:])
	require.NoError(t, err)
	require.False(t, got.ValidateMagic())
}

func TestBlockHandleRoundTrip(t *testing.T) {
	h := BlockHandle{Offset: 123456789, Size: 42}
	buf := h.Encode(nil)
	require.Equal(t, h.EncodedSize(), len(buf))

	got, n, err := DecodeBlockHandle(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Equal(t, len(buf), n)
}
