package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zfogg/vidshare/internal/storage"
)

// FakeUploader keeps uploads in memory. Set Err to make every call fail.
type FakeUploader struct {
	mu       sync.Mutex
	Objects  map[string]int64
	Deleted  []string
	Duration float64
	Err      error
	seq      int
}

func NewFakeUploader() *FakeUploader {
	return &FakeUploader{Objects: map[string]int64{}, Duration: 12.5}
}

func (f *FakeUploader) Upload(ctx context.Context, localPath string, kind storage.Kind, opts storage.UploadOptions) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, err
	}
	f.seq++
	key := fmt.Sprintf("%s/%s/%d%s", kind, opts.OwnerID, f.seq, filepath.Ext(localPath))
	f.Objects[key] = info.Size()

	res := &storage.UploadResult{
		Key:  key,
		URL:  "https://cdn.test/" + key,
		Size: info.Size(),
	}
	if kind == storage.KindVideo {
		res.Duration = f.Duration
	}
	return res, nil
}

func (f *FakeUploader) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.Objects, key)
	f.Deleted = append(f.Deleted, key)
	return nil
}

// Count returns the number of stored objects.
func (f *FakeUploader) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Objects)
}
