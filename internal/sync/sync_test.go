package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/storage"
)

type fakeDrive struct {
	pages [][]clients.DriveEntry
	err   error
	calls int
}

func (f *fakeDrive) List(ctx context.Context, folderID, pageToken string) ([]clients.DriveEntry, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if idx < len(f.pages)-1 {
		next = fmt.Sprintf("page-%d", idx+1)
	}
	return f.pages[idx], next, nil
}

type fakeStore struct {
	folder  *storage.Folder
	files   map[string]*storage.File
	jobs    []string
	deleted []string
	status  storage.FolderStatus
}

func newFakeStore(folder *storage.Folder, files ...*storage.File) *fakeStore {
	byID := make(map[string]*storage.File, len(files))
	for _, f := range files {
		byID[f.DriveFileID] = f
	}
	return &fakeStore{folder: folder, files: byID}
}

func (f *fakeStore) GetFolder(ctx context.Context, tenantID, folderID string) (*storage.Folder, error) {
	return f.folder, nil
}

func (f *fakeStore) ListFilesByFolder(ctx context.Context, folderID string) ([]*storage.File, error) {
	var out []*storage.File
	for _, file := range f.files {
		out = append(out, file)
	}
	return out, nil
}

func (f *fakeStore) UpsertFile(ctx context.Context, folderID, tenantID, driveFileID, name, mimeType string, modifiedTime time.Time, deepLink string) (*storage.File, error) {
	file := &storage.File{ID: "file-" + driveFileID, FolderID: folderID, TenantID: tenantID, DriveFileID: driveFileID, Name: name, MimeType: mimeType, ModifiedTime: modifiedTime, DeepLink: deepLink}
	f.files[driveFileID] = file
	return file, nil
}

func (f *fakeStore) DeleteChunksByFile(ctx context.Context, fileID string) error { return nil }

func (f *fakeStore) DeleteFile(ctx context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	for k, v := range f.files {
		if v.ID == fileID {
			delete(f.files, k)
		}
	}
	return nil
}

func (f *fakeStore) EnqueueJob(ctx context.Context, fileID, folderID, tenantID string, jobType storage.JobType, priority int) error {
	f.jobs = append(f.jobs, fileID)
	return nil
}

func (f *fakeStore) UpdateFolderProgress(ctx context.Context, folderID string, filesTotal int, syncedAt time.Time) error {
	return nil
}

func (f *fakeStore) UpdateFolderStatus(ctx context.Context, folderID string, status storage.FolderStatus, lastError string) error {
	f.status = status
	return nil
}

func (f *fakeStore) RecomputeFolderProgress(ctx context.Context, folderID string) error {
	f.status = storage.FolderStatusReady
	return nil
}

func TestSync_AddsNewFiles(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	store := newFakeStore(folder)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{
		{{ID: "r1", Name: "a.pdf", MimeType: "application/pdf", ModifiedTime: time.Now()}},
	}}

	s := New(store, drive, nil)
	result, err := s.Sync(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected 1 added file, got %+v", result)
	}
	if len(store.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(store.jobs))
	}
	if store.status != storage.FolderStatusIndexing {
		t.Fatalf("expected folder marked indexing while its job is outstanding, got %s", store.status)
	}
}

func TestSync_NoChangesResolvesFolderImmediately(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	modTime := time.Now()
	existing := &storage.File{ID: "file-r1", FolderID: "fo1", DriveFileID: "r1", Name: "a.pdf", ModifiedTime: modTime}
	store := newFakeStore(folder, existing)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{
		{{ID: "r1", Name: "a.pdf", MimeType: "application/pdf", ModifiedTime: modTime}},
	}}

	s := New(store, drive, nil)
	if _, err := s.Sync(context.Background(), "t1", "fo1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if store.status != storage.FolderStatusReady {
		t.Fatalf("expected folder resolved to ready with nothing to index, got %s", store.status)
	}
}

func TestSync_RequeuesModifiedFiles(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	old := time.Now().Add(-24 * time.Hour)
	existing := &storage.File{ID: "file-r1", FolderID: "fo1", DriveFileID: "r1", Name: "a.pdf", ModifiedTime: old}
	store := newFakeStore(folder, existing)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{
		{{ID: "r1", Name: "a.pdf", MimeType: "application/pdf", ModifiedTime: time.Now()}},
	}}

	s := New(store, drive, nil)
	result, err := s.Sync(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Modified != 1 || result.Added != 0 {
		t.Fatalf("expected 1 modified file, got %+v", result)
	}
	if len(store.jobs) != 1 {
		t.Fatalf("expected a reindex job enqueued, got %d", len(store.jobs))
	}
}

func TestSync_LeavesUnchangedFilesAlone(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	modTime := time.Now()
	existing := &storage.File{ID: "file-r1", FolderID: "fo1", DriveFileID: "r1", Name: "a.pdf", ModifiedTime: modTime}
	store := newFakeStore(folder, existing)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{
		{{ID: "r1", Name: "a.pdf", MimeType: "application/pdf", ModifiedTime: modTime}},
	}}

	s := New(store, drive, nil)
	result, err := s.Sync(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Added != 0 || result.Modified != 0 || result.Deleted != 0 {
		t.Fatalf("expected no changes, got %+v", result)
	}
	if len(store.jobs) != 0 {
		t.Fatalf("expected no jobs enqueued, got %d", len(store.jobs))
	}
}

func TestSync_DeletesFilesMissingFromRemote(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	existing := &storage.File{ID: "file-r1", FolderID: "fo1", DriveFileID: "r1", Name: "gone.pdf", ModifiedTime: time.Now()}
	store := newFakeStore(folder, existing)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{{}}}

	s := New(store, drive, nil)
	result, err := s.Sync(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deleted file, got %+v", result)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "file-r1" {
		t.Fatalf("expected file-r1 deleted, got %+v", store.deleted)
	}
}

func TestSync_PaginatesThroughAllPages(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	store := newFakeStore(folder)
	drive := &fakeDrive{pages: [][]clients.DriveEntry{
		{{ID: "r1", Name: "a.pdf", ModifiedTime: time.Now()}},
		{{ID: "r2", Name: "b.pdf", ModifiedTime: time.Now()}},
	}}

	s := New(store, drive, nil)
	result, err := s.Sync(context.Background(), "t1", "fo1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("expected both pages' files added, got %+v", result)
	}
}

func TestSync_AccessDeniedSurfacesReauthorizationRequired(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	store := newFakeStore(folder)
	drive := &fakeDrive{err: fmt.Errorf("drive: forbidden: %w", apperr.ErrAccessDenied)}

	s := New(store, drive, nil)
	_, err := s.Sync(context.Background(), "t1", "fo1")
	if !errors.Is(err, ErrReauthorizationRequired) {
		t.Fatalf("expected ErrReauthorizationRequired, got %v", err)
	}
	if store.status != storage.FolderStatusError {
		t.Fatalf("expected folder marked error, got %s", store.status)
	}
}

func TestSync_NotFoundMarksFolderFailed(t *testing.T) {
	folder := &storage.Folder{ID: "fo1", TenantID: "t1", DriveFolderID: "d-fo1"}
	store := newFakeStore(folder)
	drive := &fakeDrive{err: fmt.Errorf("drive: missing: %w", apperr.ErrNotFound)}

	s := New(store, drive, nil)
	_, err := s.Sync(context.Background(), "t1", "fo1")
	if !errors.Is(err, apperr.ErrPermanent) {
		t.Fatalf("expected a permanent error, got %v", err)
	}
	if store.status != storage.FolderStatusError {
		t.Fatalf("expected folder marked error, got %s", store.status)
	}
}
