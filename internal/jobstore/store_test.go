package jobstore

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openTestStore(t)

	v, dirty, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	// reopening an up-to-date ledger is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestMigrateDownAndUp(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MigrateTo(1))
	v, _, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	require.NoError(t, s.MigrateUp())
	v, _, err = s.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	id, err := s.Begin(ctx, Job{StartedAt: started, Frames: 48, Missing: 2, FirstIndex: 1, LastIndex: 50})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	running, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, running.Status)
	assert.True(t, running.FinishedAt.IsZero())
	assert.True(t, math.IsNaN(running.Beam.Mean.X))
	assert.Equal(t, 48, running.Frames)
	assert.Equal(t, 50, running.LastIndex)

	beam := cred.BeamCenter{
		Mean: cred.Point{X: 255.5, Y: 256.25},
		Std:  cred.Point{X: 0.5, Y: math.NaN()},
	}
	artifacts := []string{"/out/XDS.INP", "/out/data/00001.img"}
	require.NoError(t, s.Finish(ctx, id, started.Add(3*time.Second), beam, artifacts, nil))

	done, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, done.Status)
	assert.True(t, done.StartedAt.Equal(started))
	assert.Equal(t, 3*time.Second, done.FinishedAt.Sub(done.StartedAt))
	assert.Equal(t, cred.Point{X: 255.5, Y: 256.25}, done.Beam.Mean)
	assert.Equal(t, 0.5, done.Beam.Std.X)
	assert.True(t, math.IsNaN(done.Beam.Std.Y))
	assert.Empty(t, done.Error)

	paths, err := s.Artifacts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/XDS.INP", "/out/data/00001.img"}, paths)
}

func TestFinishFailedJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Begin(ctx, Job{ID: uuid.New(), StartedAt: time.Unix(100, 0)})
	require.NoError(t, err)
	runErr := errors.New("no beam found")
	require.NoError(t, s.Finish(ctx, id, time.Unix(101, 0), cred.BeamCenter{Mean: cred.NaNPoint(), Std: cred.NaNPoint(), Fallback: true}, nil, runErr))

	j, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, "no beam found", j.Error)
	assert.True(t, j.Beam.Fallback)

	paths, err := s.Artifacts(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestUnknownJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Finish(ctx, uuid.New(), time.Now(), cred.BeamCenter{}, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := s.Begin(ctx, Job{StartedAt: time.Unix(int64(1000+i), 0)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	jobs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)
}
