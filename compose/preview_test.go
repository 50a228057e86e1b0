package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewAcquireRelease(t *testing.T) {
	s := NewPreviewStore("/compose/preview/")
	b := NewJPEG([]byte{1, 2, 3})

	p := s.Acquire(b)
	assert.Equal(t, "/compose/preview/"+p.Token, p.URL)

	got, ok := s.Get(p.Token)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 3, got.Size())

	p.Release()
	p.Release()
	_, ok = s.Get(p.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	var nilPreview *Preview
	nilPreview.Release()
}

func TestSequencerTickets(t *testing.T) {
	var s sequencer
	a := s.next(SlotText)
	assert.True(t, s.current(SlotText, a))
	b := s.next(SlotText)
	assert.False(t, s.current(SlotText, a))
	assert.True(t, s.current(SlotText, b))

	c := s.next(SlotImage)
	assert.True(t, s.current(SlotImage, c))
	assert.True(t, s.current(SlotText, b))
	assert.Equal(t, "image", SlotImage.String())
}
