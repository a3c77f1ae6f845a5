package vulkan

import "testing"

func TestUploadCommandBufferStates(t *testing.T) {
	cb := &uploadCommandBuffer{state: commandBufferReady}
	for _, to := range []commandBufferState{commandBufferRecording, commandBufferEnded, commandBufferSubmitted} {
		if err := cb.advance(to); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}

	tests := []struct {
		from, to commandBufferState
	}{
		{commandBufferReady, commandBufferEnded},
		{commandBufferRecording, commandBufferSubmitted},
		{commandBufferSubmitted, commandBufferRecording},
		{commandBufferFreed, commandBufferRecording},
		{commandBufferEnded, commandBufferEnded},
	}
	for _, tt := range tests {
		cb := &uploadCommandBuffer{state: tt.from}
		if err := cb.advance(tt.to); err == nil {
			t.Errorf("%s -> %s accepted", tt.from, tt.to)
		}
		if cb.state != tt.from {
			t.Errorf("rejected transition moved the buffer to %s", cb.state)
		}
	}
}
