package renderer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/renderer/renderertest"
)

func TestUploadBufferRoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 64, 4096 + 7} {
		backend := renderertest.New()
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*31 + 7)
		}

		buf, err := UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_VERTEX, data)
		if err != nil {
			t.Fatalf("UploadBuffer(%d bytes): %v", n, err)
		}
		if buf.RenderBufferType != metadata.RENDERBUFFER_TYPE_VERTEX || buf.TotalSize != uint64(n) {
			t.Fatalf("unexpected buffer %+v", buf)
		}
		// only the destination survives the upload
		if len(backend.Buffers) != 1 || !backend.Buffers[buf] {
			t.Fatalf("staging buffer leaked: %d live buffers", len(backend.Buffers))
		}

		got, err := DownloadBuffer(backend, buf)
		if err != nil {
			t.Fatalf("DownloadBuffer: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip of %d bytes differs", n)
		}
		if len(backend.Buffers) != 1 {
			t.Fatalf("read buffer leaked: %d live buffers", len(backend.Buffers))
		}
		backend.RenderBufferDestroy(buf)
	}
}

func TestUploadBufferReleasesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"staging creation", renderertest.OpStagingCreate},
		{"staging fill", renderertest.OpBufferLoad},
		{"destination creation", renderertest.OpDeviceCreate},
		{"copy", renderertest.OpBufferCopy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := renderertest.New()
			backend.Fail[tt.op] = true

			buf, err := UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_INDEX, []byte{1, 2, 3, 4})
			if !errors.Is(err, renderertest.ErrInjected) {
				t.Fatalf("UploadBuffer error = %v, want ErrInjected", err)
			}
			if buf != nil {
				t.Errorf("UploadBuffer returned a buffer on failure")
			}
			if backend.Live() != 0 {
				t.Errorf("%d resources left alive after failure", backend.Live())
			}
		})
	}
}

func TestUploadBufferRejectsInvalidInput(t *testing.T) {
	backend := renderertest.New()
	if _, err := UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_VERTEX, nil); err == nil {
		t.Error("expected an error for an empty payload")
	}
	if _, err := UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_STAGING, []byte{1}); err == nil {
		t.Error("expected an error for a host visible destination")
	}
	if backend.BuffersCreated != 0 {
		t.Errorf("%d buffers created for invalid input", backend.BuffersCreated)
	}
}

func TestUploadBufferUsesOneCopy(t *testing.T) {
	backend := renderertest.New()
	if _, err := UploadBuffer(backend, metadata.RENDERBUFFER_TYPE_INDEX, []byte{9, 9, 9, 9}); err != nil {
		t.Fatal(err)
	}
	if backend.Copies != 1 {
		t.Errorf("Copies = %d, want 1", backend.Copies)
	}
	if backend.BuffersCreated != 2 {
		t.Errorf("BuffersCreated = %d, want staging + destination", backend.BuffersCreated)
	}
}
