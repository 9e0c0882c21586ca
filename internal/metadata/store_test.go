package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/stretchr/testify/assert"
)

// runStoreContract exercises behavior every Store backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("FileLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		f := &models.File{ID: "f1", Name: "a.txt", ChunkCount: 2, ReplicationFactor: 3, DirectoryPath: "/", UploadTime: time.Now().UTC()}
		assert.NoError(t, s.CreateFile(ctx, f))

		got, err := s.GetFile(ctx, "f1")
		assert.NoError(t, err)
		assert.Equal(t, "a.txt", got.Name)

		found, err := s.FindFile(ctx, "/", "a.txt")
		assert.NoError(t, err)
		assert.Equal(t, "f1", found.ID)

		// same name in the same directory is rejected
		dup := &models.File{ID: "f2", Name: "a.txt", ChunkCount: 1, DirectoryPath: "/"}
		assert.True(t, errors.Is(s.CreateFile(ctx, dup), ErrAlreadyExists))

		// same name elsewhere is fine
		other := &models.File{ID: "f3", Name: "a.txt", ChunkCount: 1, DirectoryPath: "/docs"}
		assert.NoError(t, s.CreateFile(ctx, other))

		files, err := s.ListFiles(ctx)
		assert.NoError(t, err)
		assert.Len(t, files, 2)

		assert.NoError(t, s.DeleteFile(ctx, "f1"))
		_, err = s.GetFile(ctx, "f1")
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.FindFile(ctx, "/", "a.txt")
		assert.True(t, errors.Is(err, ErrNotFound))

		// deleting twice is a no-op
		assert.NoError(t, s.DeleteFile(ctx, "f1"))
	})

	t.Run("UpdateFileMovesNameIndex", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		assert.NoError(t, s.CreateFile(ctx, &models.File{ID: "f1", Name: "x", ChunkCount: 1, DirectoryPath: "/"}))
		assert.NoError(t, s.CreateFile(ctx, &models.File{ID: "f2", Name: "x", ChunkCount: 1, DirectoryPath: "/b"}))

		f, _ := s.GetFile(ctx, "f1")
		f.DirectoryPath = "/a"
		assert.NoError(t, s.UpdateFile(ctx, f))

		_, err := s.FindFile(ctx, "/", "x")
		assert.True(t, errors.Is(err, ErrNotFound))
		moved, err := s.FindFile(ctx, "/a", "x")
		assert.NoError(t, err)
		assert.Equal(t, "f1", moved.ID)

		got, err := s.GetFile(ctx, "f1")
		assert.NoError(t, err)
		assert.Equal(t, "/a", got.DirectoryPath)

		// moving onto a taken name fails
		f.DirectoryPath = "/b"
		assert.True(t, errors.Is(s.UpdateFile(ctx, f), ErrAlreadyExists))

		assert.True(t, errors.Is(s.UpdateFile(ctx, &models.File{ID: "missing"}), ErrNotFound))
	})

	t.Run("ChunkLocations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		locs := []models.ChunkLocation{
			{FileID: "f", ChunkIndex: 2, WorkerAddress: "w2:1", Role: models.RolePrimary},
			{FileID: "f", ChunkIndex: 1, WorkerAddress: "w1:1", Role: models.RolePrimary},
			{FileID: "f", ChunkIndex: 1, WorkerAddress: "w3:1", Role: models.RoleReplica},
			{FileID: "g", ChunkIndex: 1, WorkerAddress: "w1:1", Role: models.RolePrimary},
		}
		for _, l := range locs {
			assert.NoError(t, s.AddChunkLocation(ctx, l))
		}
		// duplicate row is ignored and keeps the first role
		assert.NoError(t, s.AddChunkLocation(ctx, models.ChunkLocation{FileID: "f", ChunkIndex: 1, WorkerAddress: "w1:1", Role: models.RoleRecovered}))

		got, err := s.ListChunkLocations(ctx, "f")
		assert.NoError(t, err)
		assert.Equal(t, []models.ChunkLocation{locs[1], locs[2], locs[0]}, got)

		assert.NoError(t, s.DeleteChunkLocations(ctx, "f"))
		got, err = s.ListChunkLocations(ctx, "f")
		assert.NoError(t, err)
		assert.Empty(t, got)

		other, err := s.ListChunkLocations(ctx, "g")
		assert.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("ReplicationAttempts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, st := range []models.AttemptStatus{models.AttemptFailure, models.AttemptSuccess} {
			assert.NoError(t, s.AddReplicationAttempt(ctx, models.ReplicationAttempt{
				FileID: "f", ChunkIndex: 1, WorkerAddress: fmt.Sprintf("w%d:1", i), Status: st, Source: models.SourceReplication,
			}))
		}
		assert.NoError(t, s.AddReplicationAttempt(ctx, models.ReplicationAttempt{
			FileID: "f", ChunkIndex: 2, WorkerAddress: "w9:1", Status: models.AttemptSuccess, Source: models.SourceReplication,
		}))

		got, err := s.ListReplicationAttempts(ctx, "f")
		assert.NoError(t, err)
		if assert.Len(t, got, 3) {
			assert.Equal(t, "w0:1", got[0].WorkerAddress)
			assert.Equal(t, "w1:1", got[1].WorkerAddress)
			assert.Equal(t, 2, got[2].ChunkIndex)
		}

		assert.NoError(t, s.ClearReplicationAttempts(ctx, "f", 1))
		got, err = s.ListReplicationAttempts(ctx, "f")
		assert.NoError(t, err)
		if assert.Len(t, got, 1) {
			assert.Equal(t, 2, got[0].ChunkIndex)
		}

		assert.NoError(t, s.DeleteReplicationAttempts(ctx, "f"))
		got, err = s.ListReplicationAttempts(ctx, "f")
		assert.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Directories", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		assert.NoError(t, s.CreateDirectory(ctx, &models.Directory{Path: "/", Content: []models.Entry{}}))
		assert.True(t, errors.Is(s.CreateDirectory(ctx, &models.Directory{Path: "/"}), ErrAlreadyExists))
		assert.NoError(t, s.CreateDirectory(ctx, &models.Directory{Path: "/a/b"}))

		err := s.UpdateDirectory(ctx, "/", func(d *models.Directory) error {
			d.Content = append(d.Content, models.FolderEntry("a"))
			return nil
		})
		assert.NoError(t, err)

		root, err := s.GetDirectory(ctx, "/")
		assert.NoError(t, err)
		assert.Equal(t, []models.Entry{models.FolderEntry("a")}, root.Content)

		// fn errors abort without writing
		boom := errors.New("boom")
		err = s.UpdateDirectory(ctx, "/", func(d *models.Directory) error {
			d.Content = nil
			return boom
		})
		assert.True(t, errors.Is(err, boom))
		root, _ = s.GetDirectory(ctx, "/")
		assert.Len(t, root.Content, 1)

		assert.True(t, errors.Is(s.UpdateDirectory(ctx, "/nope", func(*models.Directory) error { return nil }), ErrNotFound))

		dirs, err := s.ListDirectories(ctx)
		assert.NoError(t, err)
		if assert.Len(t, dirs, 2) {
			assert.Equal(t, "/", dirs[0].Path)
			assert.Equal(t, "/a/b", dirs[1].Path)
		}

		assert.NoError(t, s.DeleteDirectory(ctx, "/a/b"))
		_, err = s.GetDirectory(ctx, "/a/b")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ConcurrentDirectoryUpdates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		assert.NoError(t, s.CreateDirectory(ctx, &models.Directory{Path: "/"}))

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.UpdateDirectory(ctx, "/", func(d *models.Directory) error {
					d.Content = append(d.Content, models.FileEntry(fmt.Sprintf("f%d", i)))
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		root, err := s.GetDirectory(ctx, "/")
		assert.NoError(t, err)
		assert.Len(t, root.Content, writers)
	})

	t.Run("WorkersAndFailureMarkers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		assert.NoError(t, s.PutWorkerStatus(ctx, models.WorkerStatus{Address: "b:1", Status: models.WorkerActive}))
		assert.NoError(t, s.PutWorkerStatus(ctx, models.WorkerStatus{Address: "a:1", Status: models.WorkerActive}))
		assert.NoError(t, s.PutWorkerStatus(ctx, models.WorkerStatus{Address: "b:1", Status: models.WorkerInactive}))

		sts, err := s.ListWorkerStatuses(ctx)
		assert.NoError(t, err)
		if assert.Len(t, sts, 2) {
			assert.Equal(t, "a:1", sts[0].Address)
			assert.Equal(t, models.WorkerInactive, sts[1].Status)
		}

		claimed, err := s.MarkFailureHandled(ctx, "b:1")
		assert.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = s.MarkFailureHandled(ctx, "b:1")
		assert.NoError(t, err)
		assert.False(t, claimed)

		handled, err := s.IsFailureHandled(ctx, "b:1")
		assert.NoError(t, err)
		assert.True(t, handled)

		assert.NoError(t, s.ClearFailureHandled(ctx, "b:1"))
		handled, err = s.IsFailureHandled(ctx, "b:1")
		assert.NoError(t, err)
		assert.False(t, handled)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateDirectory(ctx, &models.Directory{Path: "/", Content: []models.Entry{models.FileEntry("a")}})

	dir, _ := s.GetDirectory(ctx, "/")
	dir.Content[0] = models.FileEntry("mutated")

	again, _ := s.GetDirectory(ctx, "/")
	assert.Equal(t, "a", again.Content[0].Name)
}

func TestNewStoreFactory(t *testing.T) {
	s, err := New(configFor("memory"), etcdConfigFor(nil))
	assert.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(configFor("mongo"), etcdConfigFor(nil))
	assert.Error(t, err)
}
