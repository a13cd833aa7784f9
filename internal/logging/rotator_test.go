package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestRotator_New tests the creation of new log rotator
func TestRotator_New(t *testing.T) {
	tests := []struct {
		name   string
		subdir string
		useUTC bool
	}{
		{"Valid directory creation", "logs", false},
		{"UTC timezone", "logs_utc", true},
		{"Nested directory creation", "nested/test/logs", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logDir := filepath.Join(t.TempDir(), tt.subdir)

			rotator, err := NewRotator(logDir, tt.useUTC, quietLogger())
			require.NoError(t, err)
			require.NotNil(t, rotator)
			defer rotator.Close()

			assert.DirExists(t, logDir)

			writer, err := rotator.GetWriter()
			assert.NoError(t, err)
			assert.NotNil(t, writer)

			currentFile := rotator.GetCurrentLogFile()
			assert.FileExists(t, currentFile)
			assert.Equal(t, DefaultPrefix, filepath.Base(currentFile)[:len(DefaultPrefix)])
		})
	}
}

func TestRotator_NewFailsOnFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	rotator, err := NewRotator(filepath.Join(blocker, "logs"), false, quietLogger())
	assert.Error(t, err)
	assert.Nil(t, rotator)
}

// TestRotator_Write tests writing through the writer
func TestRotator_Write(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	dir := t.TempDir()

	rotator, err := NewRotator(dir, true, quietLogger(), WithPrefix("feed"), WithClock(clock.Now))
	require.NoError(t, err)
	defer rotator.Close()

	writer, err := rotator.GetWriter()
	require.NoError(t, err)

	testData := "Test log entry\n"
	n, err := writer.Write([]byte(testData))
	assert.NoError(t, err)
	assert.Equal(t, len(testData), n)

	currentFile := rotator.GetCurrentLogFile()
	assert.Equal(t, filepath.Join(dir, "feed_2024-03-09.log"), currentFile)

	content, err := os.ReadFile(currentFile)
	require.NoError(t, err)
	assert.Equal(t, testData, string(content))
}

// TestRotator_DateRotation tests rotation and compression of the old day
func TestRotator_DateRotation(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)}
	dir := t.TempDir()

	rotator, err := NewRotator(dir, true, quietLogger(), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = rotator.Write([]byte("day one\n"))
	require.NoError(t, err)

	// Same day: nothing happens
	rotator.CheckRotation()
	assert.Equal(t, filepath.Join(dir, "sbs_2024-03-09.log"), rotator.GetCurrentLogFile())

	clock.Set(time.Date(2024, 3, 10, 0, 0, 30, 0, time.UTC))
	rotator.CheckRotation()
	assert.Equal(t, filepath.Join(dir, "sbs_2024-03-10.log"), rotator.GetCurrentLogFile())

	_, err = rotator.Write([]byte("day two\n"))
	require.NoError(t, err)

	// Close waits for the background compression
	require.NoError(t, rotator.Close())

	assert.NoFileExists(t, filepath.Join(dir, "sbs_2024-03-09.log"))
	compressed := filepath.Join(dir, "sbs_2024-03-09.log.gz")
	require.FileExists(t, compressed)

	gzFile, err := os.Open(compressed)
	require.NoError(t, err)
	defer gzFile.Close()
	gzReader, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gzReader.Close()

	assert.Equal(t, "sbs_2024-03-09.log", gzReader.Name)
	decompressed, err := io.ReadAll(gzReader)
	require.NoError(t, err)
	assert.Equal(t, "day one\n", string(decompressed))

	today, err := os.ReadFile(filepath.Join(dir, "sbs_2024-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "day two\n", string(today))

	files, err := rotator.GetLogFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

// TestRotator_UTCTimezone tests that the date follows the selected zone
func TestRotator_UTCTimezone(t *testing.T) {
	zone := time.FixedZone("ACDT", 10*3600+1800)
	// 2024-03-09 in UTC, 2024-03-10 locally
	instant := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC).In(zone)
	clock := func() time.Time { return instant }

	utc, err := NewRotator(t.TempDir(), true, quietLogger(), WithClock(clock))
	require.NoError(t, err)
	defer utc.Close()
	assert.Equal(t, "sbs_2024-03-09.log", filepath.Base(utc.GetCurrentLogFile()))

	local, err := NewRotator(t.TempDir(), false, quietLogger(), WithClock(clock))
	require.NoError(t, err)
	defer local.Close()
	assert.Equal(t, "sbs_2024-03-10.log", filepath.Base(local.GetCurrentLogFile()))
}

// TestRotator_CleanupOldLogs tests removal of files past the age limit
func TestRotator_CleanupOldLogs(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	rotator, err := NewRotator(dir, true, quietLogger(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer rotator.Close()

	old := filepath.Join(dir, "sbs_2024-03-01.log.gz")
	recent := filepath.Join(dir, "sbs_2024-03-18.log.gz")
	for _, f := range []string{old, recent} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	}
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -19), now.AddDate(0, 0, -19)))
	require.NoError(t, os.Chtimes(recent, now.AddDate(0, 0, -2), now.AddDate(0, 0, -2)))
	// current file is never removed even when its mtime is old
	current := rotator.GetCurrentLogFile()
	require.NoError(t, os.Chtimes(current, now.AddDate(0, 0, -30), now.AddDate(0, 0, -30)))

	removed, err := rotator.CleanupOldLogs(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, current)

	_, err = rotator.CleanupOldLogs(0)
	assert.Error(t, err)
	_, err = rotator.CleanupOldLogs(-1)
	assert.Error(t, err)
}

// TestRotator_Close tests that writes fail once closed
func TestRotator_Close(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, quietLogger())
	require.NoError(t, err)

	require.NoError(t, rotator.Close())
	require.NoError(t, rotator.Close(), "second close is a no-op")

	_, err = rotator.GetWriter()
	assert.Error(t, err)
	_, err = rotator.Write([]byte("late"))
	assert.Error(t, err)
}

// TestRotator_ConcurrentAccess tests concurrent writes and rotation checks
func TestRotator_ConcurrentAccess(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, quietLogger())
	require.NoError(t, err)

	const goroutines, lines = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < lines; i++ {
				_, err := fmt.Fprintf(rotator, "g%d line %d\n", g, i)
				assert.NoError(t, err)
				rotator.CheckRotation()
			}
		}(g)
	}
	wg.Wait()

	current := rotator.GetCurrentLogFile()
	require.NoError(t, rotator.Close())

	content, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Equal(t, goroutines*lines, strings.Count(string(content), "\n"))
}

// TestRotator_Start tests that the scheduler stops with its context
func TestRotator_Start(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rotator.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rotator did not stop")
	}
}
