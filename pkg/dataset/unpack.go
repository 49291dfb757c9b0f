package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hed1ad/icsguardml/pkg/logging"
)

// Layout describes the working directory an unpack run populates and the
// loader later reads from.
type Layout struct {
	Root string
}

// AttackTablesDir is where per-window attack tables land.
func (l Layout) AttackTablesDir() string {
	return filepath.Join(l.Root, ExtractedAttackDir)
}

// BenignTablesDir is where per-window benign tables land.
func (l Layout) BenignTablesDir() string {
	return filepath.Join(l.Root, ExtractedBenignDir)
}

// UnpackOptions configures an unpack run.
type UnpackOptions struct {
	// SourceDir holds the top-level distribution archive.
	SourceDir string

	// DestDir is the working area that receives all extracted content.
	// Exclusively owned by this run; concurrent runs against the same
	// directory are unsupported.
	DestDir string

	// TopArchive overrides the top-level archive name. Defaults to
	// TopLevelArchive.
	TopArchive string
}

// Summary reports what an unpack run did.
type Summary struct {
	ArchivesSeen      int
	ArchivesVerified  int
	ArchivesExtracted int
	Failed            []string // archives that failed extraction
}

// Unpack extracts the full dataset distribution: the top-level archive, then
// every nested per-class, per-window archive, each verified against its
// checksum entry before extraction.
//
// An integrity failure (mismatch, missing or malformed checksum entry) halts
// the run immediately. A corrupt nested payload fails only that archive and
// is reported in the Summary. The run is interruptible between archives via
// ctx.
func Unpack(ctx context.Context, opts UnpackOptions, log *logging.Logger) (*Summary, Layout, error) {
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("unpack")

	layout := Layout{Root: opts.DestDir}
	top := opts.TopArchive
	if top == "" {
		top = TopLevelArchive
	}

	sum := &Summary{}
	if err := ctx.Err(); err != nil {
		return sum, layout, err
	}

	topPath := filepath.Join(opts.SourceDir, top)
	if _, err := os.Stat(topPath); err != nil {
		return sum, layout, fmt.Errorf("top-level archive %s: %w", top, err)
	}

	// The distribution ships no checksum for the container itself; its
	// nested archives are individually verified below.
	sum.ArchivesSeen++
	log.Info("extracting top-level archive", "archive", top)
	if err := Extract(topPath, opts.DestDir); err != nil {
		return sum, layout, err
	}
	sum.ArchivesExtracted++

	for _, class := range []struct {
		src, dest string
	}{
		{AttackDirName, layout.AttackTablesDir()},
		{BenignDirName, layout.BenignTablesDir()},
	} {
		srcDir := filepath.Join(opts.DestDir, class.src)
		if _, err := os.Stat(srcDir); err != nil {
			log.Warn("class directory missing, skipping", "dir", class.src)
			continue
		}
		if err := unpackClassDir(ctx, srcDir, class.dest, sum, log); err != nil {
			return sum, layout, err
		}
	}

	log.Info("unpack complete",
		"seen", sum.ArchivesSeen,
		"verified", sum.ArchivesVerified,
		"extracted", sum.ArchivesExtracted,
		"failed", len(sum.Failed))
	return sum, layout, nil
}

// unpackClassDir verifies and extracts every nested archive in srcDir.
func unpackClassDir(ctx context.Context, srcDir, destDir string, sum *Summary, log *logging.Logger) error {
	manifest, err := LoadManifest(filepath.Join(srcDir, ChecksumsDir))
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(srcDir), err)
	}

	archives, err := listArchives(srcDir)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		log.Warn("no archives found", "dir", filepath.Base(srcDir))
		return nil
	}

	for _, name := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.ArchivesSeen++

		class, window, ok := ParseArchiveName(name)
		if !ok {
			log.Warn("ignoring archive with unexpected name", "archive", name)
			continue
		}

		expected, err := manifest.Expected(name)
		if err != nil {
			return err
		}
		path := filepath.Join(srcDir, name)
		if err := VerifyArchive(path, expected); err != nil {
			log.Error("checksum failed", "archive", name, logging.Err(err))
			return err
		}
		sum.ArchivesVerified++
		log.Info("checksum passed", "archive", name, "class", class, "window", window)

		if err := Extract(path, destDir); err != nil {
			if IsExtraction(err) {
				log.Error("extract failed", "archive", name, logging.Err(err))
				sum.Failed = append(sum.Failed, name)
				continue
			}
			return err
		}
		sum.ArchivesExtracted++
		log.Info("extracted", "archive", name, "dest", filepath.Base(destDir))
	}
	return nil
}

// listArchives returns the sorted .tar.xz archive names directly in dir.
func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.xz") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
