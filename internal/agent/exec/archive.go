package exec

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// Codec is the compression codec an archive was written with.
type Codec string

const (
	CodecGzip Codec = "gzip"
	CodecLZ4  Codec = "lz4"
)

// DetectCodec resolves the codec of the archive at path from its
// extension, falling back to gzip magic-byte sniffing (1f 8b) when the
// extension is ambiguous. This resolves spec.md §9's open question:
// restore must be codec-aware rather than hard-coded to either codec, as
// original_source's creation (gzip) and restoration (lz4) disagreed.
func DetectCodec(path string) (Codec, error) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return CodecGzip, nil
	case strings.HasSuffix(path, ".lz4"), strings.HasSuffix(path, ".tar.lz4"):
		return CodecLZ4, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.Missing(path)
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		return CodecGzip, nil
	}
	return CodecLZ4, nil
}

// CreateGzipArchive tars and gzips the named subdirectories of sourceDir
// into targetFile, per the snapshot-create sequence (spec.md §4.4 step 5).
func (r *Runner) CreateGzipArchive(ctx context.Context, sourceDir, targetFile string, dirs []string) error {
	out, err := os.Create(targetFile)
	if err != nil {
		return apperrors.Missing(targetFile)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, d := range dirs {
		root := filepath.Join(sourceDir, d)
		if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
			continue
		}
		if walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(sourceDir, path)
			if relErr != nil {
				return relErr
			}
			hdr, hdrErr := tar.FileInfoHeader(info, "")
			if hdrErr != nil {
				return hdrErr
			}
			hdr.Name = rel
			if writeErr := tw.WriteHeader(hdr); writeErr != nil {
				return writeErr
			}
			if info.IsDir() {
				return nil
			}
			f, openErr := os.Open(path)
			if openErr != nil {
				return openErr
			}
			defer f.Close()
			_, copyErr := io.Copy(tw, f)
			return copyErr
		}); walkErr != nil {
			return apperrors.Upstream("archive "+root, walkErr.Error())
		}
	}
	return nil
}

// ExtractArchive extracts archiveFile into targetDir, selecting the
// extraction codec via DetectCodec rather than assuming gzip or lz4.
func (r *Runner) ExtractArchive(ctx context.Context, archiveFile, targetDir string) error {
	codec, err := DetectCodec(archiveFile)
	if err != nil {
		return err
	}

	f, err := os.Open(archiveFile)
	if err != nil {
		return apperrors.Missing(archiveFile)
	}
	defer f.Close()

	var tr *tar.Reader
	switch codec {
	case CodecGzip:
		gr, gerr := gzip.NewReader(bufio.NewReader(f))
		if gerr != nil {
			return apperrors.Upstream("gzip open", gerr.Error())
		}
		defer gr.Close()
		tr = tar.NewReader(gr)
	case CodecLZ4:
		tr = tar.NewReader(lz4.NewReader(f))
	default:
		return fmt.Errorf("unhandled archive codec %q", codec)
	}

	for {
		hdr, nerr := tr.Next()
		if nerr == io.EOF {
			break
		}
		if nerr != nil {
			return apperrors.Upstream("archive extract", nerr.Error())
		}
		dest := filepath.Join(targetDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
				return mkErr
			}
		case tar.TypeReg:
			if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
				return mkErr
			}
			out, createErr := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if createErr != nil {
				return createErr
			}
			if _, copyErr := io.Copy(out, tr); copyErr != nil {
				out.Close()
				return copyErr
			}
			out.Close()
		}
	}
	return nil
}
