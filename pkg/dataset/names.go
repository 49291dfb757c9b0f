package dataset

import (
	"fmt"
	"regexp"
	"strconv"
)

// Distribution layout constants. The top-level archive unpacks into class
// directories that each hold the per-window archives and their checksums.
const (
	TopLevelArchive = "all_attack_benign_samples.tar.xz"

	AttackDirName = "attack_data"
	BenignDirName = "benign_data"
	ChecksumsDir  = "checksums"

	ExtractedAttackDir = "extracted_attack_data"
	ExtractedBenignDir = "extracted_benign_data"
)

// ClassBenign is the label attached to rows loaded from benign tables.
const ClassBenign = "benign"

// MinWindow and MaxWindow bound the aggregation interval in seconds.
const (
	MinWindow = 1
	MaxWindow = 10
)

var (
	archiveNameRe = regexp.MustCompile(`^([a-z][a-z0-9_]*)_samples_([0-9]+)sec\.tar\.xz$`)
	tableNameRe   = regexp.MustCompile(`^([a-z][a-z0-9_]*)_samples_([0-9]+)sec\.csv$`)
)

// ParseArchiveName splits an archive file name of the form
// "<class>_samples_<N>sec.tar.xz" into its class and window. ok is false
// for names that do not follow the convention.
func ParseArchiveName(name string) (class string, window int, ok bool) {
	return parseSampleName(archiveNameRe, name)
}

// ParseTableName splits a table file name of the form
// "<class>_samples_<N>sec.csv" into its class and window.
func ParseTableName(name string) (class string, window int, ok bool) {
	return parseSampleName(tableNameRe, name)
}

func parseSampleName(re *regexp.Regexp, name string) (string, int, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	window, err := strconv.Atoi(m[2])
	if err != nil || window < MinWindow || window > MaxWindow {
		return "", 0, false
	}
	return m[1], window, true
}

// TableName builds the canonical table file name for a class and window.
func TableName(class string, window int) string {
	return fmt.Sprintf("%s_samples_%dsec.csv", class, window)
}

// ArchiveName builds the canonical archive file name for a class and window.
func ArchiveName(class string, window int) string {
	return fmt.Sprintf("%s_samples_%dsec.tar.xz", class, window)
}
