package dataset

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Extract decompresses a verified .tar.xz archive into destDir. Archives
// that are a bare xz stream rather than a tar container are decompressed to
// a single file named after the archive.
//
// Extraction is idempotent: files already present in destDir with identical
// content are left alone; files present with different content abort with an
// ExtractionError wrapping ErrTargetConflict. All members are written to a
// staging directory first and renamed into place only after the whole
// archive decoded cleanly, so an interrupted run never leaves a partial
// table that looks complete.
func Extract(archivePath, destDir string) error {
	name := filepath.Base(archivePath)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &ExtractionError{Archive: name, Cause: err}
	}
	staging, err := os.MkdirTemp(destDir, ".extract-*")
	if err != nil {
		return &ExtractionError{Archive: name, Cause: err}
	}
	defer os.RemoveAll(staging)

	if err := decodeArchive(archivePath, staging); err != nil {
		return &ExtractionError{Archive: name, Cause: err}
	}
	if err := commitStaging(staging, destDir); err != nil {
		return &ExtractionError{Archive: name, Cause: err}
	}
	return nil
}

// decodeArchive decompresses archivePath into staging, handling both tar.xz
// containers and bare xz streams.
func decodeArchive(archivePath, staging string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("xz: %w", err)
	}

	// Decompress fully before touching the tar layer so a truncated xz
	// stream fails here rather than mid-extraction.
	raw := filepath.Join(staging, ".payload")
	rf, err := os.Create(raw)
	if err != nil {
		return err
	}
	if _, err := io.Copy(rf, xr); err != nil {
		rf.Close()
		return fmt.Errorf("xz: %w", err)
	}
	if err := rf.Close(); err != nil {
		return err
	}

	isTar, err := untar(raw, staging)
	if err != nil {
		return err
	}
	if !isTar {
		// Not a tar container: keep the payload as a single file named
		// after the archive with the .tar.xz suffixes stripped.
		return os.Rename(raw, filepath.Join(staging, rawPayloadName(archivePath)))
	}
	return os.Remove(raw)
}

// untar extracts the tar file at raw into dir, guarding every member path
// against traversal outside dir. A payload whose very first header does not
// parse is reported as not-a-tar rather than corrupt; header failures after
// members were already read are corruption.
func untar(raw, dir string) (bool, error) {
	f, err := os.Open(raw)
	if err != nil {
		return false, err
	}
	defer f.Close()

	tr := tar.NewReader(f)
	seen := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			if seen == 0 && (errors.Is(err, tar.ErrHeader) || errors.Is(err, io.ErrUnexpectedEOF)) {
				return false, nil
			}
			return true, err
		}
		seen++

		target, err := securePath(dir, hdr.Name)
		if err != nil {
			return true, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return true, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return true, err
			}
			out, err := os.Create(target)
			if err != nil {
				return true, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return true, fmt.Errorf("member %s: %w", hdr.Name, err)
			}
			if err := out.Close(); err != nil {
				return true, err
			}
		default:
			// Links and special files have no place in a data drop.
		}
	}
}

// securePath joins member onto dir and rejects any result escaping dir.
func securePath(dir, member string) (string, error) {
	target := filepath.Join(dir, filepath.Clean(member))
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("blocked path traversal attempt: %s", member)
	}
	return target, nil
}

// rawPayloadName strips the compression suffixes from an archive name.
func rawPayloadName(archivePath string) string {
	name := filepath.Base(archivePath)
	name = strings.TrimSuffix(name, ".xz")
	name = strings.TrimSuffix(name, ".tar")
	return name
}

// commitStaging renames every staged file into destDir. Existing identical
// files are skipped; existing different files abort with ErrTargetConflict.
func commitStaging(staging, destDir string) error {
	return filepath.Walk(staging, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(destDir, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if _, statErr := os.Stat(target); statErr == nil {
			same, cmpErr := sameContent(path, target)
			if cmpErr != nil {
				return cmpErr
			}
			if same {
				return nil
			}
			return fmt.Errorf("%s: %w", rel, ErrTargetConflict)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Rename(path, target)
	})
}

// sameContent reports whether two files hold identical bytes.
func sameContent(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}
	da, err := Digest(a)
	if err != nil {
		return false, err
	}
	db, err := Digest(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal([]byte(da), []byte(db)), nil
}
