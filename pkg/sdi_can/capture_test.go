package sdi_can

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, frames map[string][]RawFrame) string {
	path := filepath.Join(t.TempDir(), "capture.cbor")
	rec, err := CreateCaptureRecorder(path)
	require.NoError(t, err)
	base := time.Now()
	i := 0
	for source, fs := range frames {
		for _, f := range fs {
			f.ReceivedAt = base.Add(time.Duration(i) * time.Millisecond)
			require.NoError(t, rec.Record(source, f))
			i++
		}
	}
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	return path
}

func TestCaptureReplayFiltersSource(t *testing.T) {

	require := require.New(t)

	path := writeCapture(t, map[string][]RawFrame{
		"left":  TestFrames(),
		"right": TestFrames()[:2],
	})

	all, err := ReadCapture(path)
	require.NoError(err)
	require.Len(all, len(TestFrames())+2)

	reader, err := CreateCaptureReader(path, "right", false)
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []RawFrame
	done := make(chan error)
	go func() {
		done <- reader.Run(ctx, func(f RawFrame) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f)
		})
	}()

	require.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(<-done)

	require.Equal(TestFrames()[0].Id, got[0].Id)
	require.Equal(TestFrames()[0].Payload, got[0].Payload)
	require.False(got[0].ReceivedAt.IsZero())
}

func TestCaptureReaderRejectsEmptySource(t *testing.T) {

	path := writeCapture(t, map[string][]RawFrame{"left": TestFrames()})

	_, err := CreateCaptureReader(path, "missing", true)
	require.Error(t, err)
}

func TestReadCaptureToleratesTruncatedTail(t *testing.T) {

	require := require.New(t)

	path := writeCapture(t, map[string][]RawFrame{"left": TestFrames()})
	data, err := os.ReadFile(path)
	require.NoError(err)
	require.NoError(os.WriteFile(path, data[:len(data)-3], 0644))

	frames, err := ReadCapture(path)
	require.NoError(err)
	require.Len(frames, len(TestFrames())-1)
}
