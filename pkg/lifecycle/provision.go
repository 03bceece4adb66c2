package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// DocumentExtensions are the reference document types picked up from the
// data directory.
var DocumentExtensions = []string{".pdf", ".md", ".txt"}

// VectorStoreName names the vector index built from the reference documents.
const VectorStoreName = "labassist reference documents"

// ErrNoDocuments is returned when the data directory holds no reference
// documents.
var ErrNoDocuments = errors.New("no reference documents found")

// Provisioned describes uploaded reference documents.
type Provisioned struct {
	FileIDs       []string
	VectorStoreID string
}

// Provisioner uploads reference documents and indexes them.
type Provisioner struct {
	files   remote.Files
	vectors remote.VectorStores
}

func NewProvisioner(files remote.Files, vectors remote.VectorStores) *Provisioner {
	return &Provisioner{files: files, vectors: vectors}
}

// Documents lists the reference documents in dir, sorted by name.
func Documents(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.LocalIOError{Op: "read dir", Path: dir, Err: err}
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range DocumentExtensions {
			if ext == want {
				paths = append(paths, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Provision uploads every reference document in dir with purpose
// "assistants" and builds one vector index over them. Files uploaded before
// a failure are left for the retention sweep.
func (p *Provisioner) Provision(ctx context.Context, dir string) (Provisioned, error) {
	paths, err := Documents(dir)
	if err != nil {
		return Provisioned{}, err
	}
	if len(paths) == 0 {
		return Provisioned{}, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	var out Provisioned
	for _, path := range paths {
		id, err := p.upload(ctx, path)
		if err != nil {
			return out, err
		}
		slog.Info("Uploaded reference document", "path", path, "fileID", id)
		out.FileIDs = append(out.FileIDs, id)
	}

	vsID, err := p.vectors.CreateVectorStore(ctx, VectorStoreName, out.FileIDs)
	if err != nil {
		return out, fmt.Errorf("creating vector index: %w", err)
	}
	slog.Info("Created vector index", "vectorStoreID", vsID, "files", len(out.FileIDs))
	out.VectorStoreID = vsID
	return out, nil
}

func (p *Provisioner) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &domain.LocalIOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	id, err := p.files.UploadFile(ctx, filepath.Base(path), f, domain.PurposeAssistants)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	return id, nil
}
