package services

import (
	"context"
	"testing"

	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/stretchr/testify/assert"
)

func directoryPaths(t *testing.T, s *testServices) []string {
	t.Helper()
	dirs, err := s.ns.GetDirectories(context.Background())
	if err != nil {
		t.Fatalf("GetDirectories: %v", err)
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, d.Path)
	}
	return out
}

func TestCreateDirectoryLinksParents(t *testing.T) {
	s := newTestServices(t, nil, "w1")
	ctx := context.Background()

	s.mkdir(t, "/a/b")

	dirs, _ := s.ns.GetDirectories(ctx)
	byPath := map[string]*models.Directory{}
	for _, d := range dirs {
		byPath[d.Path] = d
	}
	if byPath["/a/b"] == nil {
		t.Fatal("expected a Directory row for /a/b")
	}
	if byPath["/a"] == nil {
		t.Fatal("expected /a to be created as an ancestor")
	}
	assert.True(t, byPath["/a"].Has(models.FolderEntry("b")))
	assert.True(t, byPath["/"].Has(models.FolderEntry("a")))

	// a sibling reuses the existing parent
	s.mkdir(t, "/a/c/")
	a, _ := s.store.GetDirectory(ctx, "/a")
	assert.Equal(t, []string{"b", "c"}, a.Folders())
}

func TestCreateDirectoryErrors(t *testing.T) {
	s := newTestServices(t, nil, "w1")
	ctx := context.Background()
	s.mkdir(t, "/a")

	serviceErr(t, s.ns.CreateDirectory(ctx, "/a"), KindConflict, CodeDirectoryExists)
	serviceErr(t, s.ns.CreateDirectory(ctx, "/"), KindConflict, CodeDirectoryExists)
	serviceErr(t, s.ns.CreateDirectory(ctx, "a/b"), KindInputValidation, CodeInvalidDirectory)
	serviceErr(t, s.ns.CreateDirectory(ctx, ""), KindInputValidation, CodeInvalidDirectory)
}

func TestListDirectory(t *testing.T) {
	s := newTestServices(t, nil, "w1")
	ctx := context.Background()
	s.mkdir(t, "/docs/old")
	s.upload(t, "a.txt", "/docs", []byte("abc"), 1)

	list, err := s.ns.ListDirectory(ctx, "docs")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	assert.Equal(t, "/docs", list.DirectoryPath)
	assert.Equal(t, []string{"a.txt"}, list.Files)
	assert.Equal(t, []string{"old"}, list.Folders)

	_, err = s.ns.ListDirectory(ctx, "/missing")
	serviceErr(t, err, KindNotFound, CodeDirectoryNotFound)
}

func TestMoveFile(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2")
	ctx := context.Background()
	s.mkdir(t, "/dst")
	id := s.upload(t, "a", "/", []byte("abcdef"), 2)

	if err := s.ns.MoveFile(ctx, "a", "/", "/dst"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}

	f, _ := s.store.GetFile(ctx, id)
	assert.Equal(t, "/dst", f.DirectoryPath)
	root, _ := s.store.GetDirectory(ctx, "/")
	dst, _ := s.store.GetDirectory(ctx, "/dst")
	assert.NotContains(t, root.Files(), "a")
	assert.Equal(t, []string{"a"}, dst.Files())

	got, _, err := s.files.Download(ctx, "a", "/dst")
	assert.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestMoveFileErrors(t *testing.T) {
	s := newTestServices(t, nil, "w1")
	ctx := context.Background()
	s.mkdir(t, "/dst")
	s.upload(t, "a", "/", []byte("x"), 1)
	s.upload(t, "a", "/dst", []byte("y"), 1)

	serviceErr(t, s.ns.MoveFile(ctx, "a", "/", "/dst"), KindConflict, CodeFileExists)
	serviceErr(t, s.ns.MoveFile(ctx, "b", "/", "/dst"), KindNotFound, CodeFileNotFound)
	serviceErr(t, s.ns.MoveFile(ctx, "a", "/", "/missing"), KindNotFound, CodeDirectoryNotFound)
	serviceErr(t, s.ns.MoveFile(ctx, "a", "relative", "/dst"), KindInputValidation, CodeInvalidDirectory)
	serviceErr(t, s.ns.MoveFile(ctx, "", "/", "/dst"), KindInputValidation, CodeInvalidRequest)
}

func TestCopyFileIsIndependent(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2", "w3")
	ctx := context.Background()
	s.mkdir(t, "/backup")
	orig := s.upload(t, "a", "/", []byte("original bytes"), 3)

	copyID, err := s.ns.CopyFile(ctx, "a", "/", "/backup")
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	s.coord.Wait()
	assert.NotEqual(t, orig, copyID)
	assert.Equal(t, s.workers.count(orig), s.workers.count(copyID))

	if err := s.ns.DeleteFile(ctx, "a", "/backup"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	assert.Equal(t, 0, s.workers.count(copyID))
	assert.Equal(t, 9, s.workers.count(orig), "deleting the copy must leave the original chunks")

	got, _, err := s.files.Download(ctx, "a", "/")
	assert.NoError(t, err)
	assert.Equal(t, []byte("original bytes"), got)
}

func TestMoveFolder(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2")
	ctx := context.Background()
	s.mkdir(t, "/a/b")
	s.mkdir(t, "/dst")
	id := s.upload(t, "x", "/a/b", []byte("payload"), 2)

	if err := s.ns.MoveFolder(ctx, "a", "/", "/dst"); err != nil {
		t.Fatalf("MoveFolder: %v", err)
	}

	assert.ElementsMatch(t, []string{"/", "/dst", "/dst/a", "/dst/a/b"}, directoryPaths(t, s))
	f, _ := s.store.GetFile(ctx, id)
	assert.Equal(t, "/dst/a/b", f.DirectoryPath)
	root, _ := s.store.GetDirectory(ctx, "/")
	assert.Equal(t, []string{"dst"}, root.Folders())
	dst, _ := s.store.GetDirectory(ctx, "/dst")
	assert.Equal(t, []string{"a"}, dst.Folders())

	got, _, err := s.files.Download(ctx, "x", "/dst/a/b")
	assert.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMoveFolderErrors(t *testing.T) {
	s := newTestServices(t, nil, "w1")
	ctx := context.Background()
	s.mkdir(t, "/a/b")
	s.mkdir(t, "/c/a")

	serviceErr(t, s.ns.MoveFolder(ctx, "a", "/", "/a/b"), KindInputValidation, CodeInvalidDestination)
	serviceErr(t, s.ns.MoveFolder(ctx, "a", "/", "/c"), KindConflict, CodeDirectoryExists)
	serviceErr(t, s.ns.MoveFolder(ctx, "zzz", "/", "/c"), KindNotFound, CodeFolderNotFound)
	serviceErr(t, s.ns.MoveFolder(ctx, "a", "/", "/missing"), KindNotFound, CodeDirectoryNotFound)
}

func TestCopyFolder(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2")
	ctx := context.Background()
	s.mkdir(t, "/a/b")
	s.mkdir(t, "/dst")
	orig := s.upload(t, "x", "/a/b", []byte("payload"), 2)
	_ = addEntry(ctx, s.store, "/a", models.FileEntry("ghost"))

	if err := s.ns.CopyFolder(ctx, "a", "/", "/dst"); err != nil {
		t.Fatalf("CopyFolder: %v", err)
	}
	s.coord.Wait()

	assert.ElementsMatch(t, []string{"/", "/a", "/a/b", "/dst", "/dst/a", "/dst/a/b"}, directoryPaths(t, s))
	copied, err := s.store.FindFile(ctx, "/dst/a/b", "x")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	assert.NotEqual(t, orig, copied.ID)
	dstA, _ := s.store.GetDirectory(ctx, "/dst/a")
	assert.Empty(t, dstA.Files(), "dangling entries are not copied")
	assert.Equal(t, []string{"b"}, dstA.Folders())

	got, _, err := s.files.Download(ctx, "x", "/dst/a/b")
	assert.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestDeleteFile(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2", "w3")
	ctx := context.Background()
	id := s.upload(t, "a", "/", []byte("abcdef"), 3)
	assert.Equal(t, 9, s.workers.count(id))

	// an unreachable worker does not fail the delete
	s.workers.setDown("w3", true)
	if err := s.ns.DeleteFile(ctx, "a", "/"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	_, err := s.store.GetFile(ctx, id)
	assert.Error(t, err)
	locs, _ := s.store.ListChunkLocations(ctx, id)
	assert.Empty(t, locs)
	attempts, _ := s.store.ListReplicationAttempts(ctx, id)
	assert.Empty(t, attempts)
	root, _ := s.store.GetDirectory(ctx, "/")
	assert.Empty(t, root.Files())
	assert.Equal(t, 3, s.workers.count(id), "only the unreachable worker keeps its chunks")

	serviceErr(t, s.ns.DeleteFile(ctx, "a", "/"), KindNotFound, CodeFileNotFound)
}

func TestDeleteFolderRecursive(t *testing.T) {
	s := newTestServices(t, nil, "w1", "w2")
	ctx := context.Background()
	s.mkdir(t, "/a/b")
	s.mkdir(t, "/keep")
	top := s.upload(t, "top", "/a", []byte("top"), 1)
	deep := s.upload(t, "deep", "/a/b", []byte("deep"), 2)
	kept := s.upload(t, "kept", "/keep", []byte("kept"), 1)
	_ = addEntry(ctx, s.store, "/a/b", models.FileEntry("ghost"))

	if err := s.ns.DeleteFolder(ctx, "a", "/"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	assert.ElementsMatch(t, []string{"/", "/keep"}, directoryPaths(t, s))
	for _, id := range []string{top, deep} {
		_, err := s.store.GetFile(ctx, id)
		assert.Error(t, err)
		assert.Equal(t, 0, s.workers.count(id))
	}
	_, err := s.store.GetFile(ctx, kept)
	assert.NoError(t, err)
	root, _ := s.store.GetDirectory(ctx, "/")
	assert.Equal(t, []string{"keep"}, root.Folders())

	serviceErr(t, s.ns.DeleteFolder(ctx, "a", "/"), KindNotFound, CodeFolderNotFound)
	serviceErr(t, s.ns.DeleteFolder(ctx, "", "/"), KindInputValidation, CodeInvalidRequest)
}
