package jobstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
)

func TestJobsCLIList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var out bytes.Buffer
	cli := NewJobsCLI(s, &out)

	require.NoError(t, cli.Run(ctx, []string{"list"}))
	assert.Equal(t, "No jobs recorded\n", out.String())

	started := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	id, err := s.Begin(ctx, Job{StartedAt: started, Frames: 3})
	require.NoError(t, err)
	beam := cred.BeamCenter{Mean: cred.Point{X: 255.5, Y: 256.25}}
	require.NoError(t, s.Finish(ctx, id, started.Add(1500*time.Millisecond), beam, nil, nil))

	out.Reset()
	require.NoError(t, cli.Run(ctx, []string{"list", "5"}))
	assert.Contains(t, out.String(), id.String())
	assert.Contains(t, out.String(), "succeeded")
	assert.Contains(t, out.String(), "2024-03-05 14:07:09")
	assert.Contains(t, out.String(), "1.5s")
	assert.Contains(t, out.String(), "255.50")
}

func TestJobsCLIShow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var out bytes.Buffer
	cli := NewJobsCLI(s, &out)

	id, err := s.Begin(ctx, Job{StartedAt: time.Unix(0, 0), Frames: 2, FirstIndex: 1, LastIndex: 3, Missing: 1})
	require.NoError(t, err)
	require.NoError(t, cli.Run(ctx, []string{"show", id.String()}))
	assert.Contains(t, out.String(), "Status:    running")
	assert.Contains(t, out.String(), "Duration:  -")
	assert.Contains(t, out.String(), "Frames:    2 (1..3, 1 missing)")
	assert.Contains(t, out.String(), "Beam:      x=-±- y=-±-")

	err = cli.Run(ctx, []string{"show", uuid.NewString()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobsCLIMigrate(t *testing.T) {
	s := openTestStore(t)
	var out bytes.Buffer
	cli := NewJobsCLI(s, &out)

	require.NoError(t, cli.Run(context.Background(), []string{"migrate", "1"}))
	assert.Equal(t, "Schema version: 1 (dirty: false)\n", out.String())

	out.Reset()
	require.NoError(t, cli.Run(context.Background(), []string{"migrate", "2"}))
	assert.Equal(t, "Schema version: 2 (dirty: false)\n", out.String())
}

func TestJobsCLIErrors(t *testing.T) {
	s := openTestStore(t)
	var out bytes.Buffer
	cli := NewJobsCLI(s, &out)
	ctx := context.Background()

	for _, args := range [][]string{
		nil,
		{"bogus"},
		{"list", "0"},
		{"show"},
		{"show", "not-a-uuid"},
		{"migrate"},
		{"migrate", "-1"},
	} {
		assert.Error(t, cli.Run(ctx, args), "args %v", args)
	}
	assert.Contains(t, out.String(), "Usage: cred-convert jobs")
}
