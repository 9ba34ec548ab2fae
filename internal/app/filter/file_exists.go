package filter

import (
	"context"
	"os"
	"strings"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// FileExistsFilter rejects local files that do not exist.
// Identifiers with a URI scheme are not checked.
type FileExistsFilter struct{}

func (f *FileExistsFilter) Name() string {
	return "file_exists_filter"
}

func (f *FileExistsFilter) Description() string {
	return "Rejects local files that do not exist"
}

func (f *FileExistsFilter) ReturnCodes() []string {
	return []string{"file_not_found"}
}

func (f *FileExistsFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

func (f *FileExistsFilter) Check(ctx context.Context, t track.Track, pl *playlist.Playlist) Result {
	if strings.Contains(t.ID, "://") {
		return Accept()
	}
	info, err := os.Stat(t.ID)
	if err != nil || info.IsDir() {
		return Reject("file_not_found")
	}
	return Accept()
}

func init() {
	Register("file_exists_filter", func(Deps) Filter {
		return &FileExistsFilter{}
	})
}
