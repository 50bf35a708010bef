package adapters

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/gzip"
	tarfs "github.com/nlepage/go-tarfs"

	"pipeline-bundles/internal/ports"
)

// TarArchiveAdapter reads and writes tar archives, gzip-compressed or not.
type TarArchiveAdapter struct{}

func NewTarArchiveAdapter() TarArchiveAdapter {
	return TarArchiveAdapter{}
}

func (a TarArchiveAdapter) Unpack(data []byte, dest string) error {
	if len(data) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("archive is empty")
	}
	var reader io.Reader = bytes.NewReader(data)
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		gzipReader, err := gzip.NewReader(reader)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to open gzip stream").
				WithCause(err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}
	archive, err := tarfs.New(reader)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read tar archive").
			WithCause(err)
	}
	if err := os.CopyFS(dest, archive); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to unpack archive into " + dest).
			WithCause(err)
	}
	return nil
}

func (a TarArchiveAdapter) Pack(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to pack " + dir).
			WithCause(err)
	}
	if err := tarWriter.Close(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to finish tar stream").
			WithCause(err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to finish gzip stream").
			WithCause(err)
	}
	return buf.Bytes(), nil
}

var _ ports.ArchivePort = TarArchiveAdapter{}
