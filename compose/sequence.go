package compose

// Slot identifies an action whose results must not be applied out of order.
type Slot int

const (
	// SlotText covers text generation and manual edits of the generated text.
	SlotText Slot = iota
	// SlotTranslate covers automatic translation.
	SlotTranslate
	// SlotImage covers image generation and photo uploads.
	SlotImage
	// SlotSubmit covers post submission.
	SlotSubmit

	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotText:
		return "text"
	case SlotTranslate:
		return "translate"
	case SlotImage:
		return "image"
	case SlotSubmit:
		return "submit"
	}
	return "unknown"
}

// sequencer hands out tickets per slot. A result may be applied only while
// its ticket is the latest one issued for the slot. Guarded by Draft.mu.
type sequencer struct {
	latest [slotCount]uint64
}

func (s *sequencer) next(slot Slot) uint64 {
	s.latest[slot]++
	return s.latest[slot]
}

func (s *sequencer) current(slot Slot, ticket uint64) bool {
	return s.latest[slot] == ticket
}
