package manifest

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/scbrown/pixelsrc/internal/target"
)

// HashFile digests a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// InputHash computes the combined input digest for a target: the sorted
// (path, content hash) pairs of its declared sources, its fingerprint
// fields, and the current output hash of each dependency. Folding in the
// dependency output hashes makes invalidation transitive without re-hashing
// raw files at every level, and writing the source paths themselves means a
// changed resolved file set changes the digest even when no file contents did.
func InputHash(t *target.Target, depOutputHash map[string]string) (string, error) {
	h := xxhash.New()

	sources := make([]string, len(t.Sources))
	copy(sources, t.Sources)
	sort.Strings(sources)
	for _, src := range sources {
		content, err := HashFile(src)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "src\x00%s\x00%s\x00", src, content)
	}

	for _, k := range t.FingerprintKeys() {
		fmt.Fprintf(h, "cfg\x00%s\x00%s\x00", k, t.Fingerprint[k])
	}

	deps := make([]string, len(t.DependsOn))
	copy(deps, t.DependsOn)
	sort.Strings(deps)
	for _, dep := range deps {
		fmt.Fprintf(h, "dep\x00%s\x00%s\x00", dep, depOutputHash[dep])
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// OutputHash digests the produced output files of a successful build, in
// sorted path order. Dependents fold this value into their own input hash.
func OutputHash(outputs []string) (string, error) {
	sorted := make([]string, len(outputs))
	copy(sorted, outputs)
	sort.Strings(sorted)

	h := xxhash.New()
	for _, out := range sorted {
		content, err := HashFile(out)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "out\x00%s\x00%s\x00", out, content)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
