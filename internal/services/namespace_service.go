package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
)

// NamespaceService manages the directory tree and moves, copies and deletes
// files and folders within it
type NamespaceService struct {
	logger *logging.Logger
	store  metadata.Store
	files  *FileService
	events *queue.Events
}

// NewNamespaceService creates a new NamespaceService
func NewNamespaceService(logger *logging.Logger, store metadata.Store, files *FileService, events *queue.Events) *NamespaceService {
	return &NamespaceService{
		logger: logger,
		store:  store,
		files:  files,
		events: events,
	}
}

// EnsureRoot creates the root directory if missing
func (s *NamespaceService) EnsureRoot(ctx context.Context) error {
	return ensureRoot(ctx, s.store)
}

func ensureRoot(ctx context.Context, store metadata.Store) error {
	err := store.CreateDirectory(ctx, &models.Directory{Path: models.RootPath, Content: []models.Entry{}})
	if err != nil && !errors.Is(err, metadata.ErrAlreadyExists) {
		return err
	}
	return nil
}

func addEntry(ctx context.Context, store metadata.Store, dirPath string, e models.Entry) error {
	return store.UpdateDirectory(ctx, dirPath, func(d *models.Directory) error {
		if !d.Has(e) {
			d.Content = append(d.Content, e)
		}
		return nil
	})
}

// removeEntry tolerates a missing directory
func removeEntry(ctx context.Context, store metadata.Store, dirPath string, e models.Entry) error {
	err := store.UpdateDirectory(ctx, dirPath, func(d *models.Directory) error {
		kept := d.Content[:0]
		for _, c := range d.Content {
			if c != e {
				kept = append(kept, c)
			}
		}
		d.Content = kept
		return nil
	})
	if errors.Is(err, metadata.ErrNotFound) {
		return nil
	}
	return err
}

func (s *NamespaceService) requireDirectory(ctx context.Context, p, code string) (*models.Directory, error) {
	d, err := s.store.GetDirectory(ctx, p)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, notFound(code, "directory %s not found", p)
		}
		return nil, internal("lookup directory", err)
	}
	return d, nil
}

// absolutePaths validates that every path is given and starts with '/'
func absolutePaths(paths ...string) error {
	for _, p := range paths {
		if p == "" || !strings.HasPrefix(p, "/") {
			return invalid(CodeInvalidDirectory, "paths must start with '/'")
		}
	}
	return nil
}

// CreateDirectory creates p and any missing ancestor, linking each into its parent
func (s *NamespaceService) CreateDirectory(ctx context.Context, p string) error {
	if err := absolutePaths(p); err != nil {
		return err
	}
	p = models.NormalizePath(p)
	if p == models.RootPath {
		return conflict(CodeDirectoryExists, "directory %s already exists", p)
	}
	if err := ensureRoot(ctx, s.store); err != nil {
		return internal("create directory", err)
	}
	if _, err := s.store.GetDirectory(ctx, p); err == nil {
		return conflict(CodeDirectoryExists, "directory %s already exists", p)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return internal("create directory", err)
	}

	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	current := models.RootPath
	for i, name := range segments {
		parent := current
		current = models.JoinPath(parent, name)

		err := s.store.CreateDirectory(ctx, &models.Directory{Path: current, Content: []models.Entry{}})
		switch {
		case err == nil:
			s.logger.Debug("Directory created", "path", current)
		case errors.Is(err, metadata.ErrAlreadyExists):
			if i == len(segments)-1 {
				return conflict(CodeDirectoryExists, "directory %s already exists", p)
			}
		default:
			return internal("create directory", err)
		}
		if err := addEntry(ctx, s.store, parent, models.FolderEntry(name)); err != nil {
			return internal("create directory", err)
		}
	}

	s.logger.Info("Directory created", "path", p)
	s.events.NamespaceChanged("create_directory", p, "", "")
	return nil
}

// ListDirectory returns the direct children of p
func (s *NamespaceService) ListDirectory(ctx context.Context, p string) (*models.ListDirectoryResponse, error) {
	p = models.NormalizePath(p)
	d, err := s.requireDirectory(ctx, p, CodeDirectoryNotFound)
	if err != nil {
		return nil, err
	}
	return &models.ListDirectoryResponse{DirectoryPath: p, Files: d.Files(), Folders: d.Folders()}, nil
}

// GetDirectories returns every directory
func (s *NamespaceService) GetDirectories(ctx context.Context) ([]*models.Directory, error) {
	dirs, err := s.store.ListDirectories(ctx)
	if err != nil {
		return nil, internal("get directories", err)
	}
	return dirs, nil
}

// transferFile validates a file move or copy and returns the source file and
// the normalized destination
func (s *NamespaceService) transferFile(ctx context.Context, name, from, to string) (*models.File, string, error) {
	if !models.ValidName(name) {
		return nil, "", invalid(CodeInvalidRequest, "a valid file_name is required")
	}
	if err := absolutePaths(from, to); err != nil {
		return nil, "", err
	}
	from, to = models.NormalizePath(from), models.NormalizePath(to)

	f, err := s.files.lookup(ctx, name, from)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.requireDirectory(ctx, to, CodeDirectoryNotFound); err != nil {
		return nil, "", err
	}
	if _, err := s.store.FindFile(ctx, to, name); err == nil {
		return nil, "", conflict(CodeFileExists, "file %s already exists in %s", name, to)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return nil, "", internal("lookup file", err)
	}
	return f, to, nil
}

// MoveFile relocates a file record; chunks stay where they are
func (s *NamespaceService) MoveFile(ctx context.Context, name, from, to string) error {
	f, to, err := s.transferFile(ctx, name, from, to)
	if err != nil {
		return err
	}
	from = f.DirectoryPath
	if err := s.relocate(ctx, f, to); err != nil {
		return err
	}
	if err := removeEntry(ctx, s.store, from, models.FileEntry(name)); err != nil {
		return internal("move file", err)
	}
	if err := addEntry(ctx, s.store, to, models.FileEntry(name)); err != nil {
		return internal("move file", err)
	}
	s.logger.Info("File moved", "file_id", f.ID, "from", from, "to", to)
	s.events.NamespaceChanged("move_file", models.JoinPath(from, name), models.JoinPath(to, name), f.ID)
	return nil
}

func (s *NamespaceService) relocate(ctx context.Context, f *models.File, dirPath string) error {
	moved := *f
	moved.DirectoryPath = dirPath
	if err := s.store.UpdateFile(ctx, &moved); err != nil {
		if errors.Is(err, metadata.ErrAlreadyExists) {
			return conflict(CodeFileExists, "file %s already exists in %s", f.Name, dirPath)
		}
		return internal("move file", err)
	}
	return nil
}

// CopyFile duplicates a file under a new id with its own chunks
func (s *NamespaceService) CopyFile(ctx context.Context, name, from, to string) (string, error) {
	f, to, err := s.transferFile(ctx, name, from, to)
	if err != nil {
		return "", err
	}
	id, err := s.files.duplicate(ctx, f, to)
	if err != nil {
		return id, err
	}
	s.logger.Info("File copied", "file_id", f.ID, "copy_id", id, "to", to)
	s.events.NamespaceChanged("copy_file", models.JoinPath(f.DirectoryPath, name), models.JoinPath(to, name), id)
	return id, nil
}

// transferFolder validates a folder move or copy and returns the source and
// destination paths of the folder
func (s *NamespaceService) transferFolder(ctx context.Context, folder, from, to string) (string, string, error) {
	if !models.ValidName(folder) {
		return "", "", invalid(CodeInvalidRequest, "a valid folder_name is required")
	}
	if err := absolutePaths(from, to); err != nil {
		return "", "", err
	}
	from, to = models.NormalizePath(from), models.NormalizePath(to)

	src := models.JoinPath(from, folder)
	if _, err := s.requireDirectory(ctx, src, CodeFolderNotFound); err != nil {
		return "", "", err
	}
	if _, err := s.requireDirectory(ctx, to, CodeDirectoryNotFound); err != nil {
		return "", "", err
	}
	if models.IsWithin(to, src) {
		return "", "", invalid(CodeInvalidDestination, "cannot place %s inside itself", src)
	}
	dst := models.JoinPath(to, folder)
	if _, err := s.store.GetDirectory(ctx, dst); err == nil {
		return "", "", conflict(CodeDirectoryExists, "directory %s already exists", dst)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return "", "", internal("lookup directory", err)
	}
	return src, dst, nil
}

// subtree returns src and its descendant directories, shallowest first
func (s *NamespaceService) subtree(ctx context.Context, src string) ([]*models.Directory, error) {
	all, err := s.store.ListDirectories(ctx)
	if err != nil {
		return nil, internal("list directories", err)
	}
	var out []*models.Directory
	for _, d := range all {
		if models.IsWithin(d.Path, src) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.Count(out[i].Path, "/"), strings.Count(out[j].Path, "/")
		if di != dj {
			return di < dj
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func rebase(p, src, dst string) string {
	return dst + strings.TrimPrefix(p, src)
}

// MoveFolder moves a folder and everything below it, rewriting every
// descendant directory path and file record
func (s *NamespaceService) MoveFolder(ctx context.Context, folder, from, to string) error {
	src, dst, err := s.transferFolder(ctx, folder, from, to)
	if err != nil {
		return err
	}
	tree, err := s.subtree(ctx, src)
	if err != nil {
		return err
	}

	for _, d := range tree {
		newPath := rebase(d.Path, src, dst)
		if err := s.store.CreateDirectory(ctx, &models.Directory{Path: newPath, Content: d.Content}); err != nil {
			return internal("move folder", err)
		}
		for _, name := range d.Files() {
			f, err := s.store.FindFile(ctx, d.Path, name)
			if errors.Is(err, metadata.ErrNotFound) {
				s.logger.Warn("Skipping dangling file entry", "directory", d.Path, "file", name)
				continue
			}
			if err != nil {
				return internal("move folder", err)
			}
			if err := s.relocate(ctx, f, newPath); err != nil {
				return err
			}
		}
	}
	for i := len(tree) - 1; i >= 0; i-- {
		if err := s.store.DeleteDirectory(ctx, tree[i].Path); err != nil {
			return internal("move folder", err)
		}
	}

	if err := removeEntry(ctx, s.store, models.NormalizePath(from), models.FolderEntry(folder)); err != nil {
		return internal("move folder", err)
	}
	if err := addEntry(ctx, s.store, models.NormalizePath(to), models.FolderEntry(folder)); err != nil {
		return internal("move folder", err)
	}
	s.logger.Info("Folder moved", "from", src, "to", dst, "directories", len(tree))
	s.events.NamespaceChanged("move_folder", src, dst, "")
	return nil
}

// CopyFolder copies a folder and everything below it. Every contained file
// gets a new id and its own chunks; dangling entries are not copied.
func (s *NamespaceService) CopyFolder(ctx context.Context, folder, from, to string) error {
	src, dst, err := s.transferFolder(ctx, folder, from, to)
	if err != nil {
		return err
	}
	tree, err := s.subtree(ctx, src)
	if err != nil {
		return err
	}

	for _, d := range tree {
		newPath := rebase(d.Path, src, dst)
		folders := make([]models.Entry, 0, len(d.Content))
		for _, e := range d.Content {
			if e.Kind == models.EntryFolder {
				folders = append(folders, e)
			}
		}
		if err := s.store.CreateDirectory(ctx, &models.Directory{Path: newPath, Content: folders}); err != nil {
			return internal("copy folder", err)
		}
	}
	for _, d := range tree {
		newPath := rebase(d.Path, src, dst)
		for _, name := range d.Files() {
			f, err := s.store.FindFile(ctx, d.Path, name)
			if errors.Is(err, metadata.ErrNotFound) {
				s.logger.Warn("Skipping dangling file entry", "directory", d.Path, "file", name)
				continue
			}
			if err != nil {
				return internal("copy folder", err)
			}
			if _, err := s.files.duplicate(ctx, f, newPath); err != nil {
				return err
			}
		}
	}

	if err := addEntry(ctx, s.store, models.NormalizePath(to), models.FolderEntry(folder)); err != nil {
		return internal("copy folder", err)
	}
	s.logger.Info("Folder copied", "from", src, "to", dst, "directories", len(tree))
	s.events.NamespaceChanged("copy_folder", src, dst, "")
	return nil
}

// DeleteFile removes a file, its chunk records and its chunks on every worker
func (s *NamespaceService) DeleteFile(ctx context.Context, name, dirPath string) error {
	f, err := s.files.lookup(ctx, name, dirPath)
	if err != nil {
		return err
	}
	if err := s.files.remove(ctx, f); err != nil {
		return err
	}
	s.logger.Info("File deleted", "file_id", f.ID, "name", name, "directory", f.DirectoryPath)
	s.events.NamespaceChanged("delete_file", models.JoinPath(f.DirectoryPath, name), "", f.ID)
	return nil
}

// DeleteFolder removes a folder recursively. Dangling file entries are skipped.
func (s *NamespaceService) DeleteFolder(ctx context.Context, folder, dirPath string) error {
	if !models.ValidName(folder) {
		return invalid(CodeInvalidRequest, "a valid folder_name is required")
	}
	dirPath = models.NormalizePath(dirPath)
	p := models.JoinPath(dirPath, folder)
	if _, err := s.requireDirectory(ctx, p, CodeFolderNotFound); err != nil {
		return err
	}
	tree, err := s.subtree(ctx, p)
	if err != nil {
		return err
	}

	for i := len(tree) - 1; i >= 0; i-- {
		d := tree[i]
		for _, name := range d.Files() {
			f, err := s.store.FindFile(ctx, d.Path, name)
			if errors.Is(err, metadata.ErrNotFound) {
				s.logger.Warn("Skipping dangling file entry", "directory", d.Path, "file", name)
				continue
			}
			if err != nil {
				return internal("delete folder", err)
			}
			if err := s.files.remove(ctx, f); err != nil {
				return err
			}
		}
		if err := s.store.DeleteDirectory(ctx, d.Path); err != nil {
			return internal("delete folder", err)
		}
	}

	if err := removeEntry(ctx, s.store, dirPath, models.FolderEntry(folder)); err != nil {
		return internal("delete folder", err)
	}
	s.logger.Info("Folder deleted", "path", p, "directories", len(tree))
	s.events.NamespaceChanged("delete_folder", p, "", "")
	return nil
}
