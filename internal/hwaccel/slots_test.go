package hwaccel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/transcoder/internal/domain"
)

func testCaps() Capabilities {
	return Capabilities{
		domain.AccelNone: {domain.VideoCodecH264: true},
		domain.AccelCUDA: {domain.VideoCodecH264: true},
	}
}

func TestSlotsFallBackToSoftwareWhenExhausted(t *testing.T) {
	slots := NewSlots(testCaps(), 1, nil, nil)

	first := slots.Acquire("a", domain.VideoCodecH264)
	second := slots.Acquire("b", domain.VideoCodecH264)

	assert.Equal(t, domain.AccelCUDA, first.Accelerator)
	assert.Equal(t, domain.AccelNone, second.Accelerator)
	assert.Equal(t, 1, slots.InUse(domain.AccelCUDA))

	slots.Release("a")
	assert.Equal(t, 0, slots.InUse(domain.AccelCUDA))

	third := slots.Acquire("c", domain.VideoCodecH264)
	assert.Equal(t, domain.AccelCUDA, third.Accelerator)
}

func TestSlotsAcquireIsIdempotentPerJob(t *testing.T) {
	slots := NewSlots(testCaps(), 2, nil, nil)

	first := slots.Acquire("a", domain.VideoCodecH264)
	again := slots.Acquire("a", domain.VideoCodecH264)

	assert.Same(t, first, again)
	assert.Equal(t, 1, slots.InUse(domain.AccelCUDA))

	slots.Release("a")
	slots.Release("a")
	slots.Release("unknown")
	assert.Equal(t, 0, slots.InUse(domain.AccelCUDA))
}

func TestSlotsUnsupportedCodecUsesSoftware(t *testing.T) {
	slots := NewSlots(testCaps(), 1, nil, nil)

	cfg := slots.Acquire("a", domain.VideoCodecVP9)
	assert.Equal(t, domain.AccelNone, cfg.Accelerator)
	assert.Equal(t, "libvpx-vp9", cfg.Encoder)
}

func TestSlotsNeverExceedCapacityUnderContention(t *testing.T) {
	slots := NewSlots(testCaps(), 3, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			slots.Acquire(string(rune('a'+id)), domain.VideoCodecH264)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, slots.InUse(domain.AccelCUDA))
	assert.Equal(t, 17, slots.InUse(domain.AccelNone))
}
