package dedup

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"shelver/internal/fileutil"
	"shelver/internal/signature"
	"shelver/internal/textutil"
)

// Pair is two files whose names look alike.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
	// Distance is the Hamming distance between the name signatures.
	Distance int `json:"distance"`
	// Cosine is the TF-IDF cosine similarity of the name words.
	Cosine float64 `json:"cosine"`
}

type nameEntry struct {
	path  string
	token signature.Token
	fp    *textutil.Fingerprint
}

// Similar compares the names of the visible regular files directly inside
// dir and returns the pairs whose name signatures differ by at most
// maxDistance bits, or whose word similarity reaches minCosine when
// minCosine is positive. Pairs are ordered closest first.
func Similar(dir string, maxDistance int, minCosine float64) ([]Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	corpus := textutil.NewCorpus()
	var names []nameEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() || fileutil.IsHidden(entry.Name()) {
			continue
		}
		token, err := signature.FromName(entry.Name())
		if err != nil {
			continue
		}
		stem, _ := fileutil.SplitExt(entry.Name())
		fp := textutil.NewFingerprint(stem)
		corpus.Add(fp)
		names = append(names, nameEntry{path: filepath.Join(dir, entry.Name()), token: token, fp: fp})
	}
	idf := corpus.IDF()
	for i := range names {
		names[i].fp = names[i].fp.WithIDF(idf)
	}

	var pairs []Pair
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			dist, err := signature.Distance(names[i].token, names[j].token)
			if err != nil {
				return nil, err
			}
			cos := textutil.CosineSimilarity(names[i].fp, names[j].fp)
			if dist <= maxDistance || (minCosine > 0 && cos >= minCosine) {
				pairs = append(pairs, Pair{A: names[i].path, B: names[j].path, Distance: dist, Cosine: cos})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Distance != pairs[j].Distance {
			return pairs[i].Distance < pairs[j].Distance
		}
		return pairs[i].Cosine > pairs[j].Cosine
	})
	return pairs, nil
}
